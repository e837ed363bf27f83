package core

import (
	"context"
	"fmt"
	"strings"

	"inventorycore/pkg/domain"
)

// NewSerialUniqueRule returns the in-transaction rule enforcing that no two
// devices share a serial number.
func NewSerialUniqueRule() domain.Rule {
	return serialUniqueRule{}
}

type serialUniqueRule struct{}

func (serialUniqueRule) Name() string { return "serial_unique" }

func (serialUniqueRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	seen := make(map[string]string)
	res := domain.Result{}
	for _, device := range view.ListDevices() {
		serial := strings.TrimSpace(device.SerialNumber)
		if serial == "" {
			continue
		}
		if otherID, dup := seen[serial]; dup {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "serial_unique",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("serial number %s used by devices %s and %s", serial, otherID, device.ID),
				Entity:   domain.EntityDevice,
				EntityID: device.ID,
			})
			continue
		}
		seen[serial] = device.ID
	}
	return res, nil
}
