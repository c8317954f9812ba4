package ingest

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/devkiraa/makeTicket-sub003/internal/async"
	"github.com/devkiraa/makeTicket-sub003/internal/verify"
)

// ErrNoSidecar means the screenshot has no metadata file next to it yet.
var ErrNoSidecar = errors.New("sidecar not found")

// Sidecar is the metadata dropped next to a screenshot as <image>.json.
type Sidecar struct {
	TicketID       string  `json:"ticket_id"`
	ExpectedAmount float64 `json:"expected_amount"`
	Reference      string  `json:"reference"`
}

// SidecarPath returns where the metadata for image is expected.
func SidecarPath(image string) string {
	return image + ".json"
}

// ReadSidecar loads and validates the metadata for image.
func ReadSidecar(image string) (Sidecar, error) {
	var sc Sidecar
	b, err := os.ReadFile(SidecarPath(image))
	if err != nil {
		if os.IsNotExist(err) {
			return sc, eris.Wrapf(ErrNoSidecar, "%s", image)
		}
		return sc, eris.Wrapf(err, "read sidecar for %s", image)
	}
	if err := json.Unmarshal(b, &sc); err != nil {
		return sc, eris.Wrapf(err, "decode sidecar for %s", image)
	}
	sc.TicketID = strings.TrimSpace(sc.TicketID)
	if sc.TicketID == "" {
		return sc, eris.Errorf("sidecar for %s: ticket_id is required", image)
	}
	if err := (verify.Expected{Amount: sc.ExpectedAmount}).Validate(); err != nil {
		return sc, eris.Wrapf(err, "sidecar for %s", image)
	}
	return sc, nil
}

// JobFromPath builds a verification job for image from its sidecar.
func JobFromPath(image string) (async.Job, error) {
	sc, err := ReadSidecar(image)
	if err != nil {
		return async.Job{}, err
	}
	abs, err := filepath.Abs(image)
	if err != nil {
		return async.Job{}, eris.Wrapf(err, "abs path %s", image)
	}
	return async.Job{
		ID:            uuid.NewString(),
		Path:          abs,
		TicketID:      sc.TicketID,
		UserReference: sc.Reference,
		Expected:      verify.Expected{Amount: sc.ExpectedAmount},
	}, nil
}
