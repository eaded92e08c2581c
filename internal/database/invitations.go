package database

import (
	"context"

	"github.com/google/uuid"
)

const invitationColumns = `code, establishment_id, role, created_by, used_by, created_at, used_at`

func scanInvitation(row interface{ Scan(dest ...any) error }) (Invitation, error) {
	var inv Invitation
	err := row.Scan(
		&inv.Code, &inv.EstablishmentID, &inv.Role, &inv.CreatedBy,
		&inv.UsedBy, &inv.CreatedAt, &inv.UsedAt,
	)
	return inv, err
}

type CreateInvitationParams struct {
	Code            string
	EstablishmentID uuid.UUID
	Role            string
	CreatedBy       uuid.UUID
}

func (q *Queries) CreateInvitation(ctx context.Context, arg CreateInvitationParams) (Invitation, error) {
	row := q.db.QueryRow(ctx,
		`INSERT INTO invitations (code, establishment_id, role, created_by)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+invitationColumns,
		arg.Code, arg.EstablishmentID, arg.Role, arg.CreatedBy)
	return scanInvitation(row)
}

func (q *Queries) GetInvitationByCode(ctx context.Context, code string) (Invitation, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+invitationColumns+` FROM invitations WHERE code = $1`, code)
	return scanInvitation(row)
}

type ConsumeInvitationParams struct {
	Code   string
	UsedBy uuid.UUID
}

// ConsumeInvitation marks an invitation used. The used_by IS NULL guard makes
// the single-use rule atomic: a second concurrent consumer gets no rows.
func (q *Queries) ConsumeInvitation(ctx context.Context, arg ConsumeInvitationParams) (Invitation, error) {
	row := q.db.QueryRow(ctx,
		`UPDATE invitations SET used_by = $2, used_at = NOW()
		 WHERE code = $1 AND used_by IS NULL
		 RETURNING `+invitationColumns,
		arg.Code, arg.UsedBy)
	return scanInvitation(row)
}

func (q *Queries) ListInvitationsByEstablishment(ctx context.Context, establishmentID uuid.UUID) ([]Invitation, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+invitationColumns+` FROM invitations
		 WHERE establishment_id = $1
		 ORDER BY created_at DESC`, establishmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invitations []Invitation
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, err
		}
		invitations = append(invitations, inv)
	}
	return invitations, rows.Err()
}
