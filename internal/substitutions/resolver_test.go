package substitutions

import (
	"testing"

	"github.com/google/uuid"

	"github.com/showrunr/eventcrm-backend/pkg/enums"
	pkgerrors "github.com/showrunr/eventcrm-backend/pkg/errors"
)

func itemRef(id uuid.UUID) Ref {
	return Ref{Type: enums.EquipmentRefItem, ID: id}
}

func TestApplyShiftsDemand(t *testing.T) {
	spk1 := uuid.New()
	spk2 := uuid.New()

	demand := Demand{itemRef(spk1): 10}
	subs := []Substitution{{From: itemRef(spk1), To: itemRef(spk2), Qty: 4}}

	applied, err := Apply(demand, subs)
	if err != nil {
		t.Fatalf("apply substitutions: %v", err)
	}
	if got := applied[itemRef(spk1)]; got != 6 {
		t.Fatalf("expected 6 remaining on source, got %d", got)
	}
	if got := applied[itemRef(spk2)]; got != 4 {
		t.Fatalf("expected 4 on target, got %d", got)
	}
	if got := demand[itemRef(spk1)]; got != 10 {
		t.Fatalf("expected original demand untouched, got %d", got)
	}
}

func TestApplyFullShiftRemovesSource(t *testing.T) {
	from := uuid.New()
	to := uuid.New()

	demand := Demand{itemRef(from): 3, itemRef(to): 1}
	applied, err := Apply(demand, []Substitution{{From: itemRef(from), To: itemRef(to), Qty: 3}})
	if err != nil {
		t.Fatalf("apply substitutions: %v", err)
	}
	if _, ok := applied[itemRef(from)]; ok {
		t.Fatal("expected fully substituted source to be removed")
	}
	if got := applied[itemRef(to)]; got != 4 {
		t.Fatalf("expected 4 on target, got %d", got)
	}
}

func TestApplyRejectsOverdraw(t *testing.T) {
	from := uuid.New()
	to := uuid.New()

	demand := Demand{itemRef(from): 2}
	_, err := Apply(demand, []Substitution{{From: itemRef(from), To: itemRef(to), Qty: 5}})
	if err == nil {
		t.Fatal("expected error moving more than demanded")
	}
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestApplyRejectsSelfSubstitution(t *testing.T) {
	ref := itemRef(uuid.New())
	_, err := Apply(Demand{ref: 5}, []Substitution{{From: ref, To: ref, Qty: 1}})
	if err == nil {
		t.Fatal("expected error for identical source and target")
	}
}

func TestApplyRejectsNonPositiveQty(t *testing.T) {
	from := itemRef(uuid.New())
	to := itemRef(uuid.New())
	if _, err := Apply(Demand{from: 5}, []Substitution{{From: from, To: to, Qty: 0}}); err == nil {
		t.Fatal("expected error for zero qty")
	}
}

func TestBuildPayloadDefaultsToShortage(t *testing.T) {
	short := uuid.New()
	covered := uuid.New()
	alt := uuid.New()

	rows := []ShortageRow{
		{Type: enums.EquipmentRefItem, RefID: short, Shortage: 3},
		{Type: enums.EquipmentRefItem, RefID: covered, Shortage: 0},
	}

	selections := Selections{}
	selections.Select(itemRef(short), alt, 0)

	subs := BuildPayload(selections, rows)
	if len(subs) != 1 {
		t.Fatalf("expected 1 substitution, got %d", len(subs))
	}
	if subs[0].From != itemRef(short) {
		t.Fatalf("unexpected source %+v", subs[0].From)
	}
	if subs[0].To != itemRef(alt) {
		t.Fatalf("unexpected target %+v", subs[0].To)
	}
	if subs[0].Qty != 3 {
		t.Fatalf("expected qty to default to the shortage, got %d", subs[0].Qty)
	}
}

func TestBuildPayloadKeepsExplicitQty(t *testing.T) {
	short := uuid.New()
	alt := uuid.New()

	rows := []ShortageRow{{Type: enums.EquipmentRefKit, RefID: short, Shortage: 4}}

	selections := Selections{}
	selections.Select(Ref{Type: enums.EquipmentRefKit, ID: short}, alt, 2)

	subs := BuildPayload(selections, rows)
	if len(subs) != 1 || subs[0].Qty != 2 {
		t.Fatalf("expected explicit qty 2, got %+v", subs)
	}
	if subs[0].To.Type != enums.EquipmentRefItem {
		t.Fatalf("alternatives must be plain items, got %s", subs[0].To.Type)
	}
}

func TestBuildPayloadOmitsUnselectedAndCleared(t *testing.T) {
	first := uuid.New()
	second := uuid.New()
	alt := uuid.New()

	rows := []ShortageRow{
		{Type: enums.EquipmentRefItem, RefID: first, Shortage: 2},
		{Type: enums.EquipmentRefItem, RefID: second, Shortage: 5},
	}

	selections := Selections{}
	selections.Select(itemRef(first), alt, 0)
	selections.Select(itemRef(second), alt, 0)
	selections.Clear(itemRef(second))

	subs := BuildPayload(selections, rows)
	if len(subs) != 1 {
		t.Fatalf("expected only the remaining selection, got %d", len(subs))
	}
	if subs[0].From != itemRef(first) {
		t.Fatalf("unexpected source %+v", subs[0].From)
	}
}
