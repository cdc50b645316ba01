package network

// Bus is a network node. Index is its position in Network.Buses.
type Bus struct {
	Index int
	Name  string
	VnKV  float64
}

// Line is a π-modelled overhead line or cable between two buses of equal
// nominal voltage.
type Line struct {
	Name      string
	FromBus   int
	ToBus     int
	LengthKm  float64
	ROhmPerKm float64
	XOhmPerKm float64
	CNFPerKm  float64
	MaxIKA    float64
	Parallel  int
	InService bool
}

// Transformer is a two-winding transformer with an optional HV-side tap
// changer and a phase shift applied from the HV to the LV side.
type Transformer struct {
	Name           string
	HVBus          int
	LVBus          int
	SnMVA          float64
	VnHVKV         float64
	VnLVKV         float64
	VkPercent      float64
	VkrPercent     float64
	ShiftDegree    float64
	TapPos         int
	TapNeutral     int
	TapStepPercent float64
	InService      bool
}

// Load is a constant-power demand. The effective demand is
// PMW*Scaling and QMVAr*Scaling.
type Load struct {
	Name      string
	Bus       int
	PMW       float64
	QMVAr     float64
	Scaling   float64
	InService bool
}

// ExtGrid is the slack connection to the upstream grid.
type ExtGrid struct {
	Bus      int
	VmPU     float64
	VaDegree float64
}

// Network is a fixed topology with mutable load scaling.
//
// Thread Safety:
//   - Not safe for concurrent mutation. The simulation loop owns it.
type Network struct {
	Name         string
	FHz          float64
	SnMVA        float64
	Buses        []Bus
	Lines        []Line
	Transformers []Transformer
	Loads        []Load
	ExtGrid      ExtGrid
}

// BusCount returns the number of buses, which is also the number of
// readings in every published snapshot.
func (n *Network) BusCount() int {
	return len(n.Buses)
}

// BusNames returns bus names in insertion order.
func (n *Network) BusNames() []string {
	names := make([]string, len(n.Buses))
	for i, b := range n.Buses {
		names[i] = b.Name
	}
	return names
}

// SetLoadScaling overwrites the scaling of every load with factor.
func (n *Network) SetLoadScaling(factor float64) {
	for i := range n.Loads {
		n.Loads[i].Scaling = factor
	}
}

// TotalLoad returns the scaled active and reactive demand of all in-service loads.
func (n *Network) TotalLoad() (pMW, qMVAr float64) {
	for _, l := range n.Loads {
		if !l.InService {
			continue
		}
		pMW += l.PMW * l.Scaling
		qMVAr += l.QMVAr * l.Scaling
	}
	return pMW, qMVAr
}

// Clone returns a deep copy, so a one-shot solve can scale loads without
// touching the original.
func (n *Network) Clone() *Network {
	c := *n
	c.Buses = append([]Bus(nil), n.Buses...)
	c.Lines = append([]Line(nil), n.Lines...)
	c.Transformers = append([]Transformer(nil), n.Transformers...)
	c.Loads = append([]Load(nil), n.Loads...)
	return &c
}
