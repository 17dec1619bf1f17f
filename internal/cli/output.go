package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"sort"
	"text/tabwriter"

	"github.com/eoprod/eoprod/internal/product"
	"github.com/eoprod/eoprod/pkg/errors"
	"github.com/eoprod/eoprod/pkg/types"
)

// summary is the printable view of an aggregate.
// resolution is the adapter matched for one input.
type resolution struct {
	Adapter     string `json:"adapter"`
	Unavailable string `json:"unavailable,omitempty"`
}

type summary struct {
	Attributes  map[string]string   `json:"attributes"`
	SubProducts []subSummary        `json:"sub_products"`
	Variables   map[string][]string `json:"variables"`
	Statistics  []stats             `json:"statistics,omitempty"`
}

type subSummary struct {
	Name       string                    `json:"name"`
	Columns    int                       `json:"columns"`
	Rows       int                       `json:"rows"`
	Processing []product.ProcessingEntry `json:"processing"`
}

// stats summarises the valid pixels of one variable.
type stats struct {
	Variable string  `json:"variable"`
	Total    int     `json:"total"`
	Valid    int     `json:"valid"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Mean     float64 `json:"mean"`
}

func summarize(agg *product.Aggregate) summary {
	s := summary{
		Attributes: agg.Attributes().Serialize(),
		Variables:  make(map[string][]string),
	}
	for _, vt := range types.AllVTypes {
		s.Variables[vt.String()] = agg.VariableNames(vt)
	}
	for _, sub := range agg.SubProducts() {
		ss := subSummary{Name: sub.Name, Processing: agg.ProcessingLog(sub.Name)}
		if sc, ok := agg.Attributes().Scope(sub.Name); ok {
			ss.Columns, ss.Rows = sc.Columns, sc.Rows
		}
		s.SubProducts = append(s.SubProducts, ss)
	}
	return s
}

// variableStats reads every pixel of the named variables.
func variableStats(agg *product.Aggregate, names []string) ([]stats, error) {
	out := make([]stats, 0, len(names))
	for _, name := range names {
		d, ok := agg.Variable(name)
		if !ok {
			return nil, errors.Errorf(errors.ErrCodeVariableNotFound, "no variable %s", name).
				WithComponent("cli")
		}
		var box types.PixelBox
		switch len(d.Shape) {
		case 2:
			box = types.FullBox(d.Shape[1], d.Shape[0])
		case 1:
			box = types.FullBox(1, d.Shape[0])
		default:
			return nil, errors.Errorf(errors.ErrCodeRegionExtraction, "%s is not a raster", name).
				WithComponent("cli")
		}
		r, err := agg.ReadPixels(name, box, nil)
		if err != nil {
			return nil, err
		}
		out = append(out, rasterStats(name, r))
	}
	return out, nil
}

func rasterStats(name string, r *types.Raster) stats {
	s := stats{Variable: name, Total: len(r.Values), Min: math.Inf(1), Max: math.Inf(-1)}
	var sum float64
	for i, v := range r.Values {
		if !r.Valid[i] {
			continue
		}
		s.Valid++
		sum += v
		s.Min = math.Min(s.Min, v)
		s.Max = math.Max(s.Max, v)
	}
	if s.Valid == 0 {
		// No valid pixel: report zeros, JSON has no NaN.
		s.Min, s.Max = 0, 0
		return s
	}
	s.Mean = sum / float64(s.Valid)
	return s
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return errors.NewError(errors.ErrCodeInternalError, "cannot encode output").WithCause(err)
	}
	return nil
}

func printSummary(w io.Writer, s summary) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintln(tw, "ATTRIBUTE\tVALUE")
	keys := make([]string, 0, len(s.Attributes))
	for k := range s.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(tw, "%s\t%s\n", k, s.Attributes[k])
	}

	fmt.Fprintln(tw, "\nSUB-PRODUCT\tCOLUMNS\tROWS\tPROCESSING")
	for _, sub := range s.SubProducts {
		steps := "-"
		for i, e := range sub.Processing {
			if i == 0 {
				steps = e.Name
			} else {
				steps += "," + e.Name
			}
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n", sub.Name, sub.Columns, sub.Rows, steps)
	}

	fmt.Fprintln(tw, "\nCATEGORY\tCOUNT\tVARIABLES")
	for _, vt := range types.AllVTypes {
		names := s.Variables[vt.String()]
		fmt.Fprintf(tw, "%s\t%d\t%s\n", vt, len(names), joinNames(names, 8))
	}

	if len(s.Statistics) > 0 {
		fmt.Fprintln(tw, "\nVARIABLE\tVALID\tMIN\tMAX\tMEAN")
		for _, st := range s.Statistics {
			if st.Valid == 0 {
				fmt.Fprintf(tw, "%s\t0/%d\t-\t-\t-\n", st.Variable, st.Total)
				continue
			}
			fmt.Fprintf(tw, "%s\t%d/%d\t%.6g\t%.6g\t%.6g\n", st.Variable, st.Valid, st.Total, st.Min, st.Max, st.Mean)
		}
	}
	return tw.Flush()
}

// joinNames lists up to limit names and counts the rest.
func joinNames(names []string, limit int) string {
	if len(names) == 0 {
		return "-"
	}
	out := ""
	for i, n := range names {
		if i == limit {
			return fmt.Sprintf("%s ... (+%d)", out, len(names)-limit)
		}
		if i > 0 {
			out += ", "
		}
		out += n
	}
	return out
}

func (o *options) print(w io.Writer, s summary) error {
	if o.jsonOutput {
		return printJSON(w, s)
	}
	return printSummary(w, s)
}
