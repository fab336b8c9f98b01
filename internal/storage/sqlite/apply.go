package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mmynk/tabsplit/internal/models"
	"github.com/mmynk/tabsplit/internal/storage"
)

// Apply executes changes in order inside one transaction. Updates of
// missing rows fail with storage.ErrNotFound; deletes of missing rows are
// no-ops so cascaded deletes can be replayed.
func (s *SQLiteStore) Apply(ctx context.Context, changes []models.Change) error {
	if len(changes) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for i, c := range changes {
		if err := applyChange(ctx, tx, c); err != nil {
			return fmt.Errorf("change %d (%s %s %s): %w", i, c.Type, c.Entity, c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func applyChange(ctx context.Context, tx *sql.Tx, c models.Change) error {
	if c.Type == models.ChangeDelete {
		return deleteRow(ctx, tx, c.Entity, c.ID)
	}

	switch c.Entity {
	case models.EntitySession:
		if c.Session == nil {
			return fmt.Errorf("missing session payload")
		}
		if c.Type == models.ChangeInsert {
			return insertSession(ctx, tx, c.Session)
		}
		return updateSession(ctx, tx, c.Session)
	case models.EntityParticipant:
		if c.Participant == nil {
			return fmt.Errorf("missing participant payload")
		}
		if c.Type == models.ChangeInsert {
			return insertParticipant(ctx, tx, c.Participant)
		}
		return updateParticipant(ctx, tx, c.Participant)
	case models.EntityItem:
		if c.Item == nil {
			return fmt.Errorf("missing item payload")
		}
		if c.Type == models.ChangeInsert {
			return insertItem(ctx, tx, c.Item)
		}
		return updateItem(ctx, tx, c.Item)
	case models.EntityAssignment:
		if c.Assignment == nil {
			return fmt.Errorf("missing assignment payload")
		}
		if c.Type == models.ChangeInsert {
			return insertAssignment(ctx, tx, c.Assignment)
		}
		return updateAssignment(ctx, tx, c.Assignment)
	}
	return fmt.Errorf("unknown entity %q", c.Entity)
}

func insertSession(ctx context.Context, tx *sql.Tx, session *models.Session) error {
	_, err := tx.ExecContext(ctx,
		"INSERT INTO sessions (id, code, tip_percentage, tax_amount, owner_id, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		session.ID, session.Code, session.TipPercentage.String(), session.TaxAmount.String(), session.OwnerID, session.CreatedAt,
	)
	if err != nil {
		return classify("insert session", err)
	}
	return nil
}

func updateSession(ctx context.Context, tx *sql.Tx, session *models.Session) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE sessions SET tip_percentage = ?, tax_amount = ? WHERE id = ?",
		session.TipPercentage.String(), session.TaxAmount.String(), session.ID,
	)
	return checkUpdated(res, err, "session", session.ID)
}

func insertParticipant(ctx context.Context, tx *sql.Tx, p *models.Participant) error {
	_, err := tx.ExecContext(ctx,
		"INSERT INTO participants (id, session_id, name, color, is_owner, joined_at) VALUES (?, ?, ?, ?, ?, ?)",
		p.ID, p.SessionID, p.Name, p.Color, p.IsOwner, p.JoinedAt,
	)
	if err != nil {
		return classify("insert participant", err)
	}
	return nil
}

func updateParticipant(ctx context.Context, tx *sql.Tx, p *models.Participant) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE participants SET name = ?, color = ? WHERE id = ?",
		p.Name, p.Color, p.ID,
	)
	return checkUpdated(res, err, "participant", p.ID)
}

func insertItem(ctx context.Context, tx *sql.Tx, item *models.Item) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO items (id, session_id, name, quantity, unit_price, total_price, order_index,
		                    is_shared, manually_added, ocr_confidence, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.SessionID, item.Name, item.Quantity, item.UnitPrice.String(), item.TotalPrice.String(),
		item.OrderIndex, item.IsShared, item.ManuallyAdded, nullableFloat(item.OCRConfidence), item.CreatedAt,
	)
	if err != nil {
		return classify("insert item", err)
	}
	return nil
}

func updateItem(ctx context.Context, tx *sql.Tx, item *models.Item) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE items SET name = ?, quantity = ?, unit_price = ?, total_price = ?,
		                  order_index = ?, is_shared = ?
		  WHERE id = ?`,
		item.Name, item.Quantity, item.UnitPrice.String(), item.TotalPrice.String(),
		item.OrderIndex, item.IsShared, item.ID,
	)
	return checkUpdated(res, err, "item", item.ID)
}

func insertAssignment(ctx context.Context, tx *sql.Tx, a *models.Assignment) error {
	_, err := tx.ExecContext(ctx,
		"INSERT INTO assignments (id, item_id, participant_id, share_fraction) VALUES (?, ?, ?, ?)",
		a.ID, a.ItemID, a.ParticipantID, a.ShareFraction,
	)
	if err != nil {
		return classify("insert assignment", err)
	}
	return nil
}

func updateAssignment(ctx context.Context, tx *sql.Tx, a *models.Assignment) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE assignments SET share_fraction = ? WHERE id = ?",
		a.ShareFraction, a.ID,
	)
	return checkUpdated(res, err, "assignment", a.ID)
}

var deleteStatements = map[models.EntityType]string{
	models.EntitySession:     "DELETE FROM sessions WHERE id = ?",
	models.EntityParticipant: "DELETE FROM participants WHERE id = ?",
	models.EntityItem:        "DELETE FROM items WHERE id = ?",
	models.EntityAssignment:  "DELETE FROM assignments WHERE id = ?",
}

func deleteRow(ctx context.Context, tx *sql.Tx, entity models.EntityType, id string) error {
	stmt, ok := deleteStatements[entity]
	if !ok {
		return fmt.Errorf("unknown entity %q", entity)
	}
	if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
		return fmt.Errorf("failed to delete %s: %w", entity, err)
	}
	return nil
}

func checkUpdated(res sql.Result, err error, entity, id string) error {
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", entity, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", entity, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", entity, id, storage.ErrNotFound)
	}
	return nil
}

func nullableFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
