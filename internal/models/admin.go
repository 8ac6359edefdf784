package models

import (
	"github.com/go-playground/validator/v10"
)

// QuorumUpdate is the request payload for changing the approval threshold.
type QuorumUpdate struct {
	MinApprovals int `json:"min_approvals" validate:"gte=1"`
}

// RoleGrant is the request payload for granting teacher or approver
// capability to an identity.
type RoleGrant struct {
	Identity string `json:"identity" validate:"required"`
}

// TokenRequest is the request payload for issuing an API token.
type TokenRequest struct {
	Identity string `json:"identity" validate:"required"`
}

func (q *QuorumUpdate) Validate() error {
	validate := validator.New()
	return validate.Struct(q)
}

func (g *RoleGrant) Validate() error {
	validate := validator.New()
	return validate.Struct(g)
}

func (tr *TokenRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(tr)
}
