package sqlite

import (
	"context"
	"fmt"

	"github.com/apsa-ai/nexus/store"
)

func (d *DB) CreateTrainingInstruction(ctx context.Context, create *store.TrainingInstruction) (*store.TrainingInstruction, error) {
	stmt := `INSERT INTO training_instruction (instruction, created_ts) VALUES (?, ?)`
	result, err := d.db.ExecContext(ctx, stmt, create.Instruction, create.CreatedTs)
	if err != nil {
		return nil, fmt.Errorf("failed to create training_instruction: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert id: %w", err)
	}
	create.ID = int32(id)

	return create, nil
}

func (d *DB) ListTrainingInstructions(ctx context.Context) ([]*store.TrainingInstruction, error) {
	query := `
		SELECT id, instruction, created_ts
		FROM training_instruction
		ORDER BY created_ts DESC, id DESC`

	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list training_instructions: %w", err)
	}
	defer rows.Close()

	list := make([]*store.TrainingInstruction, 0)
	for rows.Next() {
		ti := &store.TrainingInstruction{}
		if err := rows.Scan(&ti.ID, &ti.Instruction, &ti.CreatedTs); err != nil {
			return nil, fmt.Errorf("failed to scan training_instruction: %w", err)
		}
		list = append(list, ti)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate training_instructions: %w", err)
	}

	return list, nil
}

func (d *DB) DeleteTrainingInstruction(ctx context.Context, delete *store.DeleteTrainingInstruction) error {
	result, err := d.db.ExecContext(ctx, `DELETE FROM training_instruction WHERE id = ?`, delete.ID)
	if err != nil {
		return fmt.Errorf("failed to delete training_instruction: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("training_instruction not found")
	}

	return nil
}
