package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestPlaceListAcceptsScalar(t *testing.T) {
	var tier RewardTier
	raw := `{"place": 1, "reward": "Weekly Champion", "type": "badge", "value": 100}`
	if err := json.Unmarshal([]byte(raw), &tier); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if len(tier.Places) != 1 || tier.Places[0] != 1 {
		t.Fatalf("expected places [1], got %v", tier.Places)
	}
}

func TestPlaceListAcceptsArray(t *testing.T) {
	var tier RewardTier
	raw := `{"place": [2, 3], "reward": "Monthly Podium", "type": "badge", "value": 250}`
	if err := json.Unmarshal([]byte(raw), &tier); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if len(tier.Places) != 2 || tier.Places[0] != 2 || tier.Places[1] != 3 {
		t.Fatalf("expected places [2 3], got %v", tier.Places)
	}
}

func TestPlaceListRejectsGarbage(t *testing.T) {
	var places PlaceList
	if err := json.Unmarshal([]byte(`"first"`), &places); err == nil {
		t.Fatal("expected an error for a non-numeric place")
	}
}

func TestValidateWindow(t *testing.T) {
	start := time.Date(2025, 6, 9, 0, 0, 0, 0, time.UTC)
	valid := Season{
		StartDate:             start,
		EndDate:               start.AddDate(0, 0, 7),
		RegistrationStartDate: start.AddDate(0, 0, -3),
		RegistrationEndDate:   start.AddDate(0, 0, -1),
	}
	if err := valid.ValidateWindow(); err != nil {
		t.Fatalf("valid window rejected: %v", err)
	}

	backwards := valid
	backwards.EndDate = start.AddDate(0, 0, -1)
	if err := backwards.ValidateWindow(); err == nil {
		t.Fatal("end before start must be rejected")
	}

	lateRegistration := valid
	lateRegistration.RegistrationEndDate = start.AddDate(0, 0, 1)
	if err := lateRegistration.ValidateWindow(); err == nil {
		t.Fatal("registration closing after the season starts must be rejected")
	}

	invertedRegistration := valid
	invertedRegistration.RegistrationStartDate = start.AddDate(0, 0, -1)
	invertedRegistration.RegistrationEndDate = start.AddDate(0, 0, -2)
	if err := invertedRegistration.ValidateWindow(); err == nil {
		t.Fatal("inverted registration window must be rejected")
	}
}
