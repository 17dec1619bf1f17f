package sen3

import (
	"strings"
	"time"

	"github.com/eoprod/eoprod/pkg/errors"
)

// TimeLayout is the timestamp format used in Sentinel-3 product names.
const TimeLayout = "20060102T150405"

// Name holds the fields encoded in a Sentinel-3 product directory name, as in
// S3A_OL_1_EFR____20200101T101010_20200101T101310_20200102T120000_0179_053_179_2340_LN1_O_NT_002.SEN3
type Name struct {
	Mission       string
	ProductString string
	Instrument    string
	Start         time.Time
	End           time.Time
	Creation      time.Time
}

var instruments = map[string]string{
	"OL": "OLCI",
	"SL": "SLSTR",
	"SY": "SYNERGY",
	"SR": "SRAL",
	"MW": "MWR",
}

// ParseName decodes a product directory name. Missing trailing fields are
// left zero; a name too short to carry a product string is an error.
func ParseName(name string) (Name, error) {
	name = strings.TrimSuffix(name, ".SEN3")
	if len(name) < 12 || !strings.HasPrefix(name, "S3") {
		return Name{}, errors.Errorf(errors.ErrCodeAdapterOpen, "%q is not a Sentinel-3 product name", name).
			WithComponent("sen3")
	}

	n := Name{
		Mission:       "Sentinel-3" + name[2:3],
		ProductString: strings.TrimRight(name[4:12], "_"),
	}
	n.Instrument = instruments[n.ProductString[:min(2, len(n.ProductString))]]

	var err error
	if n.Start, err = parseTime(name, 16, 31); err != nil {
		return Name{}, err
	}
	if n.End, err = parseTime(name, 32, 47); err != nil {
		return Name{}, err
	}
	if n.Creation, err = parseTime(name, 48, 63); err != nil {
		return Name{}, err
	}
	return n, nil
}

func parseTime(name string, from, to int) (time.Time, error) {
	if len(name) < to {
		return time.Time{}, nil
	}
	t, err := time.Parse(TimeLayout, name[from:to])
	if err != nil {
		return time.Time{}, errors.Errorf(errors.ErrCodeAdapterOpen, "bad timestamp %q in product name", name[from:to]).
			WithCause(err).WithComponent("sen3")
	}
	return t, nil
}
