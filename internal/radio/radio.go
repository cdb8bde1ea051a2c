// Package radio reads the active radio descriptor maintained by the radio
// selector and reports changes to it.
package radio

import (
	"github.com/emcomm-tools/et-launcher/internal/config"
	"github.com/emcomm-tools/et-launcher/internal/fault"
)

// NoRadio is reported when no radio has been selected.
const NoRadio = "NO-RADIO"

// Descriptor is the active-radio document. This package only reads it.
type Descriptor struct {
	Vendor string `json:"vendor"`
	Model  string `json:"model"`
}

func (d Descriptor) String() string {
	return d.Vendor + " " + d.Model
}

// Reader returns the active radio from a fixed path.
type Reader struct {
	path string
}

func NewReader(path string) *Reader {
	return &Reader{path: path}
}

func (r *Reader) Path() string { return r.path }

// Current returns "<vendor> <model>", or NoRadio when the descriptor does not
// exist. A malformed descriptor is a fault.Decode error.
func (r *Reader) Current() (string, error) {
	d, err := config.Read[Descriptor](r.path)
	if err != nil {
		if fault.Is(err, fault.NotFound) {
			return NoRadio, nil
		}
		return "", err
	}
	return d.String(), nil
}
