package conflicts

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/showrunr/eventcrm-backend/internal/substitutions"
	"github.com/showrunr/eventcrm-backend/pkg/db/models"
	"github.com/showrunr/eventcrm-backend/pkg/enums"
	pkgerrors "github.com/showrunr/eventcrm-backend/pkg/errors"
)

// DemandLine is one offer line's contribution to equipment demand. Product
// lines multiply the product's equipment bill by Qty; ad-hoc lines reference
// items directly, one unit each per line quantity.
type DemandLine struct {
	ProductID    *uuid.UUID
	Qty          int
	EquipmentIDs []uuid.UUID
}

// BuildDemand computes the raw demand map for a set of offer lines. The
// product map must contain every product the lines reference, with its
// equipment bill loaded.
func BuildDemand(lines []DemandLine, products map[uuid.UUID]*models.Product) (substitutions.Demand, error) {
	demand := make(substitutions.Demand)
	for _, line := range lines {
		if line.Qty <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "line qty must be positive")
		}

		if line.ProductID != nil {
			product, ok := products[*line.ProductID]
			if !ok || product == nil {
				return nil, pkgerrors.New(pkgerrors.CodeValidation,
					fmt.Sprintf("unknown product %s", line.ProductID))
			}
			for _, row := range product.Equipment {
				ref := substitutions.Ref{Type: row.ItemType, ID: row.ItemID}
				demand[ref] += line.Qty * row.QtyPerUnit
			}
			continue
		}

		for _, itemID := range line.EquipmentIDs {
			ref := substitutions.Ref{Type: enums.EquipmentRefItem, ID: itemID}
			demand[ref] += line.Qty
		}
	}
	return demand, nil
}

// KitIDs returns the kit references present in the demand map.
func KitIDs(demand substitutions.Demand) []uuid.UUID {
	var ids []uuid.UUID
	for ref := range demand {
		if ref.Type == enums.EquipmentRefKit {
			ids = append(ids, ref.ID)
		}
	}
	return ids
}

// ExplodeKits flattens the demand map to item level. Kit demand is converted
// into demand on its member items; the kit map must contain every kit the
// demand references, with members loaded.
func ExplodeKits(demand substitutions.Demand, kits map[uuid.UUID]*models.EquipmentKit) (map[uuid.UUID]int, error) {
	items := make(map[uuid.UUID]int, len(demand))
	for ref, qty := range demand {
		switch ref.Type {
		case enums.EquipmentRefItem:
			items[ref.ID] += qty
		case enums.EquipmentRefKit:
			kit, ok := kits[ref.ID]
			if !ok || kit == nil {
				return nil, pkgerrors.New(pkgerrors.CodeValidation,
					fmt.Sprintf("unknown kit %s", ref.ID))
			}
			for _, member := range kit.Items {
				items[member.ItemID] += qty * member.Qty
			}
		default:
			return nil, pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("invalid equipment reference type %q", ref.Type))
		}
	}
	return items, nil
}
