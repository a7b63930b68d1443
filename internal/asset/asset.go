package asset

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Kind 区分法币与数字资产。
type Kind string

const (
	KindFiat   Kind = "fiat"
	KindCrypto Kind = "crypto"
)

const (
	fiatDisplayDecimals   int32 = 2
	cryptoDisplayDecimals int32 = 6
)

var (
	// ErrUnknownAsset 表示注册表中不存在该资产代码。
	ErrUnknownAsset = errors.New("asset: unknown asset")
	// ErrKindMismatch 表示资产类型与所需的交易腿不符。
	ErrKindMismatch = errors.New("asset: kind mismatch")
)

// Asset 为不可变的资产元数据。
type Asset struct {
	Code            string
	Kind            Kind
	DisplayDecimals int32
}

// IsFiat 判断是否为法币。
func (a Asset) IsFiat() bool {
	return a.Kind == KindFiat
}

// IsZero 判断是否为空值。
func (a Asset) IsZero() bool {
	return a.Code == ""
}

func (a Asset) String() string {
	return a.Code
}

// Registry 按资产代码索引的只读资产表。
type Registry struct {
	assets map[string]Asset
}

// NewRegistry 根据法币与数字资产代码列表构造注册表，精度由类型决定。
func NewRegistry(fiat, crypto []string) (*Registry, error) {
	r := &Registry{assets: make(map[string]Asset, len(fiat)+len(crypto))}
	for _, code := range fiat {
		if err := r.add(code, KindFiat, fiatDisplayDecimals); err != nil {
			return nil, err
		}
	}
	for _, code := range crypto {
		if err := r.add(code, KindCrypto, cryptoDisplayDecimals); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// DefaultRegistry 返回内置的资产表。
func DefaultRegistry() *Registry {
	r, err := NewRegistry([]string{"USD", "EUR", "GBP", "NGN"}, []string{"BTC", "ETH", "USDT", "SOL"})
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Registry) add(code string, kind Kind, decimals int32) error {
	code = normalize(code)
	if code == "" {
		return errors.New("asset: 资产代码不能为空")
	}
	if existing, ok := r.assets[code]; ok {
		return fmt.Errorf("asset: %s 重复注册 (已登记为 %s)", code, existing.Kind)
	}
	r.assets[code] = Asset{Code: code, Kind: kind, DisplayDecimals: decimals}
	return nil
}

// Lookup 查询资产元数据。
func (r *Registry) Lookup(code string) (Asset, error) {
	a, ok := r.assets[normalize(code)]
	if !ok {
		return Asset{}, fmt.Errorf("%w: %q", ErrUnknownAsset, code)
	}
	return a, nil
}

// LookupKind 查询资产并校验类型。
func (r *Registry) LookupKind(code string, kind Kind) (Asset, error) {
	a, err := r.Lookup(code)
	if err != nil {
		return Asset{}, err
	}
	if a.Kind != kind {
		return Asset{}, fmt.Errorf("%w: %s 为 %s，需要 %s", ErrKindMismatch, a.Code, a.Kind, kind)
	}
	return a, nil
}

// List 按代码排序返回指定类型的全部资产。
func (r *Registry) List(kind Kind) []Asset {
	out := make([]Asset, 0, len(r.assets))
	for _, a := range r.assets {
		if a.Kind == kind {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

func normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
