package whse

// BinArrangement describes how bins are defined for a warehouse
type BinArrangement string

const (
	BinsRanged BinArrangement = "range"
	BinsListed BinArrangement = "list"
)

// BinRange is an inclusive range of bin codes
type BinRange struct {
	From    string `json:"from" yaml:"from"`
	Through string `json:"through" yaml:"through"`
}

// Bin is a single listed bin
type Bin struct {
	Code        string `json:"code" yaml:"code"`
	Description string `json:"desc" yaml:"desc"`
}

// Warehouse holds the bin configuration for one warehouse
type Warehouse struct {
	ID          string         `json:"id" yaml:"id"`
	Arrangement BinArrangement `json:"arranged" yaml:"arranged"`
	Ranges      []BinRange     `json:"ranges,omitempty" yaml:"ranges,omitempty"`
	Bins        []Bin          `json:"bins,omitempty" yaml:"bins,omitempty"`
}

// AreBinsRanged reports whether the warehouse defines bins by range
func (w *Warehouse) AreBinsRanged() bool {
	return w.Arrangement == BinsRanged
}

// UIConfig builds the session configuration payload consumed by terminals
func (w *Warehouse) UIConfig() map[string]any {
	var (
		arranged BinArrangement
		bins     any
	)

	if w.AreBinsRanged() {
		arranged = BinsRanged
		ranges := make([]map[string]string, 0, len(w.Ranges))
		for _, r := range w.Ranges {
			ranges = append(ranges, map[string]string{
				"from":    r.From,
				"through": r.Through,
			})
		}
		bins = ranges
	} else {
		arranged = BinsListed
		list := make(map[string]string, len(w.Bins))
		for _, b := range w.Bins {
			list[b.Code] = b.Description
		}
		bins = list
	}

	return map[string]any{
		"whse": map[string]any{
			"id": w.ID,
			"bins": map[string]any{
				"arranged": string(arranged),
				"bins":     bins,
			},
		},
	}
}
