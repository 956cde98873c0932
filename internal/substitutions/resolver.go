package substitutions

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/showrunr/eventcrm-backend/pkg/enums"
	pkgerrors "github.com/showrunr/eventcrm-backend/pkg/errors"
)

// Ref identifies an equipment item or kit in a demand map.
type Ref struct {
	Type enums.EquipmentRefType
	ID   uuid.UUID
}

// Demand maps equipment references to required quantities.
type Demand map[Ref]int

// Substitution shifts part of the demand from one item to another for the
// duration of the offer window.
type Substitution struct {
	From Ref
	To   Ref
	Qty  int
}

// Clone returns an independent copy of the demand map.
func (d Demand) Clone() Demand {
	out := make(Demand, len(d))
	for ref, qty := range d {
		out[ref] = qty
	}
	return out
}

// Apply returns a rewritten copy of the demand map with each substitution
// moving quantity from its source reference to its target. The caller's map
// is left untouched; a substitution can never move more than what is still
// demanded from the source.
func Apply(demand Demand, subs []Substitution) (Demand, error) {
	out := demand.Clone()
	for _, sub := range subs {
		if sub.Qty <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "substitution qty must be positive")
		}
		if sub.From == sub.To {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "substitution source and target must differ")
		}
		if !sub.From.Type.IsValid() || !sub.To.Type.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid substitution reference type")
		}

		current := out[sub.From]
		if current < sub.Qty {
			return nil, pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("substitution moves %d but only %d demanded from %s", sub.Qty, current, sub.From.ID)).
				WithDetails(map[string]any{"from_item_id": sub.From.ID.String()})
		}

		if current == sub.Qty {
			delete(out, sub.From)
		} else {
			out[sub.From] = current - sub.Qty
		}
		out[sub.To] += sub.Qty
	}
	return out, nil
}
