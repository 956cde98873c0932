package substitutions

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/showrunr/eventcrm-backend/pkg/enums"
)

// Selection picks an alternative item for one shortage row. A zero Qty covers
// the row's full shortage at payload time.
type Selection struct {
	ItemID uuid.UUID
	Qty    int
}

// Selections keys chosen alternatives by the shortage row they resolve, in
// the "{itemType}|{itemId}" form conflict-check rows are addressed by.
type Selections map[string]Selection

// Key builds the selections key for a demand reference.
func Key(ref Ref) string {
	return fmt.Sprintf("%s|%s", ref.Type, ref.ID)
}

// Select records an alternative for the given shortage reference. A qty of
// zero or less defers to the row's shortage when the payload is built.
func (s Selections) Select(from Ref, altItemID uuid.UUID, qty int) {
	s[Key(from)] = Selection{ItemID: altItemID, Qty: qty}
}

// Clear drops the selection for the given reference, if any.
func (s Selections) Clear(from Ref) {
	delete(s, Key(from))
}

// ShortageRow is the slice of a conflict-check row the payload builder needs.
type ShortageRow struct {
	Type     enums.EquipmentRefType
	RefID    uuid.UUID
	Shortage int
}

// BuildPayload turns the selected alternatives into substitutions, one per
// shortage row that carries a selection. Rows without a selection are
// omitted; a selection without an explicit quantity covers the row's full
// shortage. Alternatives are always plain items, never kits.
func BuildPayload(selections Selections, rows []ShortageRow) []Substitution {
	if len(selections) == 0 {
		return nil
	}
	var subs []Substitution
	for _, row := range rows {
		from := Ref{Type: row.Type, ID: row.RefID}
		sel, ok := selections[Key(from)]
		if !ok {
			continue
		}
		qty := sel.Qty
		if qty <= 0 {
			qty = row.Shortage
		}
		if qty <= 0 {
			continue
		}
		subs = append(subs, Substitution{
			From: from,
			To:   Ref{Type: enums.EquipmentRefItem, ID: sel.ItemID},
			Qty:  qty,
		})
	}
	return subs
}
