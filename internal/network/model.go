package network

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed models/cigre_mv.yaml
var cigreMVModel []byte

// CIGREMV returns a fresh copy of the CIGRE MV benchmark network.
// Every call parses the embedded model, so callers may mutate the result.
func CIGREMV() (*Network, error) {
	return Parse(cigreMVModel)
}

// LoadFile reads a YAML topology from path.
func LoadFile(path string) (*Network, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from operator config
	if err != nil {
		return nil, fmt.Errorf("reading network model: %w", err)
	}
	net, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("network model %s: %w", path, err)
	}
	return net, nil
}

// modelFile mirrors the YAML schema. Elements reference buses by name.
type modelFile struct {
	Name         string                  `yaml:"name"`
	FHz          float64                 `yaml:"f_hz"`
	SnMVA        float64                 `yaml:"sn_mva"`
	Buses        []busSpec               `yaml:"buses"`
	LineTypes    map[string]lineTypeSpec `yaml:"line_types"`
	Lines        []lineSpec              `yaml:"lines"`
	Transformers []transformerSpec       `yaml:"transformers"`
	Loads        []loadSpec              `yaml:"loads"`
	ExtGrid      *extGridSpec            `yaml:"ext_grid"`
}

type busSpec struct {
	Name string  `yaml:"name"`
	VnKV float64 `yaml:"vn_kv"`
}

type lineTypeSpec struct {
	ROhmPerKm float64 `yaml:"r_ohm_per_km"`
	XOhmPerKm float64 `yaml:"x_ohm_per_km"`
	CNFPerKm  float64 `yaml:"c_nf_per_km"`
	MaxIKA    float64 `yaml:"max_i_ka"`
}

type lineSpec struct {
	Name     string  `yaml:"name"`
	FromBus  string  `yaml:"from_bus"`
	ToBus    string  `yaml:"to_bus"`
	LengthKm float64 `yaml:"length_km"`
	StdType  string  `yaml:"std_type"`

	// Inline parameters, used when StdType is empty.
	ROhmPerKm float64 `yaml:"r_ohm_per_km"`
	XOhmPerKm float64 `yaml:"x_ohm_per_km"`
	CNFPerKm  float64 `yaml:"c_nf_per_km"`
	MaxIKA    float64 `yaml:"max_i_ka"`

	Parallel  int   `yaml:"parallel"`
	InService *bool `yaml:"in_service"`
}

type transformerSpec struct {
	Name           string  `yaml:"name"`
	HVBus          string  `yaml:"hv_bus"`
	LVBus          string  `yaml:"lv_bus"`
	SnMVA          float64 `yaml:"sn_mva"`
	VnHVKV         float64 `yaml:"vn_hv_kv"`
	VnLVKV         float64 `yaml:"vn_lv_kv"`
	VkPercent      float64 `yaml:"vk_percent"`
	VkrPercent     float64 `yaml:"vkr_percent"`
	ShiftDegree    float64 `yaml:"shift_degree"`
	TapPos         int     `yaml:"tap_pos"`
	TapNeutral     int     `yaml:"tap_neutral"`
	TapStepPercent float64 `yaml:"tap_step_percent"`
	InService      *bool   `yaml:"in_service"`
}

type loadSpec struct {
	Name      string   `yaml:"name"`
	Bus       string   `yaml:"bus"`
	PMW       float64  `yaml:"p_mw"`
	QMVAr     float64  `yaml:"q_mvar"`
	Scaling   *float64 `yaml:"scaling"`
	InService *bool    `yaml:"in_service"`
}

type extGridSpec struct {
	Bus      string   `yaml:"bus"`
	VmPU     *float64 `yaml:"vm_pu"`
	VaDegree float64  `yaml:"va_degree"`
}

// Parse builds and validates a Network from its YAML description.
func Parse(data []byte) (*Network, error) {
	var mf modelFile
	if err := yaml.Unmarshal(data, &mf); err != nil {
		return nil, fmt.Errorf("%w: parsing yaml: %v", ErrInvalidModel, err)
	}

	net, err := mf.build()
	if err != nil {
		return nil, err
	}
	if err := net.Validate(); err != nil {
		return nil, err
	}
	return net, nil
}

// build resolves bus names to indices and applies element defaults.
func (mf *modelFile) build() (*Network, error) {
	net := &Network{
		Name:  mf.Name,
		FHz:   mf.FHz,
		SnMVA: mf.SnMVA,
	}
	if net.FHz == 0 {
		net.FHz = 50
	}
	if net.SnMVA == 0 {
		net.SnMVA = 1
	}

	index := make(map[string]int, len(mf.Buses))
	for i, b := range mf.Buses {
		if b.Name == "" {
			return nil, fmt.Errorf("%w: bus %d has no name", ErrInvalidModel, i)
		}
		if _, dup := index[b.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate bus name %q", ErrInvalidModel, b.Name)
		}
		index[b.Name] = i
		net.Buses = append(net.Buses, Bus{Index: i, Name: b.Name, VnKV: b.VnKV})
	}

	lookup := func(element, name string) (int, error) {
		i, ok := index[name]
		if !ok {
			return 0, fmt.Errorf("%w: %s references %q", ErrUnknownBus, element, name)
		}
		return i, nil
	}

	for _, ls := range mf.Lines {
		from, err := lookup(ls.Name, ls.FromBus)
		if err != nil {
			return nil, err
		}
		to, err := lookup(ls.Name, ls.ToBus)
		if err != nil {
			return nil, err
		}
		params := lineTypeSpec{
			ROhmPerKm: ls.ROhmPerKm,
			XOhmPerKm: ls.XOhmPerKm,
			CNFPerKm:  ls.CNFPerKm,
			MaxIKA:    ls.MaxIKA,
		}
		if ls.StdType != "" {
			lt, ok := mf.LineTypes[ls.StdType]
			if !ok {
				return nil, fmt.Errorf("%w: %s uses %q", ErrUnknownLineType, ls.Name, ls.StdType)
			}
			params = lt
		}
		parallel := ls.Parallel
		if parallel == 0 {
			parallel = 1
		}
		net.Lines = append(net.Lines, Line{
			Name:      ls.Name,
			FromBus:   from,
			ToBus:     to,
			LengthKm:  ls.LengthKm,
			ROhmPerKm: params.ROhmPerKm,
			XOhmPerKm: params.XOhmPerKm,
			CNFPerKm:  params.CNFPerKm,
			MaxIKA:    params.MaxIKA,
			Parallel:  parallel,
			InService: boolOr(ls.InService, true),
		})
	}

	for _, ts := range mf.Transformers {
		hv, err := lookup(ts.Name, ts.HVBus)
		if err != nil {
			return nil, err
		}
		lv, err := lookup(ts.Name, ts.LVBus)
		if err != nil {
			return nil, err
		}
		net.Transformers = append(net.Transformers, Transformer{
			Name:           ts.Name,
			HVBus:          hv,
			LVBus:          lv,
			SnMVA:          ts.SnMVA,
			VnHVKV:         ts.VnHVKV,
			VnLVKV:         ts.VnLVKV,
			VkPercent:      ts.VkPercent,
			VkrPercent:     ts.VkrPercent,
			ShiftDegree:    ts.ShiftDegree,
			TapPos:         ts.TapPos,
			TapNeutral:     ts.TapNeutral,
			TapStepPercent: ts.TapStepPercent,
			InService:      boolOr(ts.InService, true),
		})
	}

	for _, ld := range mf.Loads {
		bus, err := lookup(ld.Name, ld.Bus)
		if err != nil {
			return nil, err
		}
		scaling := 1.0
		if ld.Scaling != nil {
			scaling = *ld.Scaling
		}
		net.Loads = append(net.Loads, Load{
			Name:      ld.Name,
			Bus:       bus,
			PMW:       ld.PMW,
			QMVAr:     ld.QMVAr,
			Scaling:   scaling,
			InService: boolOr(ld.InService, true),
		})
	}

	if mf.ExtGrid == nil {
		return nil, fmt.Errorf("%w: ext_grid is required", ErrInvalidModel)
	}
	slack, err := lookup("ext_grid", mf.ExtGrid.Bus)
	if err != nil {
		return nil, err
	}
	vm := 1.0
	if mf.ExtGrid.VmPU != nil {
		vm = *mf.ExtGrid.VmPU
	}
	net.ExtGrid = ExtGrid{Bus: slack, VmPU: vm, VaDegree: mf.ExtGrid.VaDegree}

	return net, nil
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
