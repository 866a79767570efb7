package auth

import (
	apperrors "github.com/spec-kit/peer-review-service/pkg/util"
)

// Operation names a guarded use case.
type Operation string

const (
	OpViewReviews      Operation = "view_reviews"
	OpSearchIdentities Operation = "search_identities"
	OpViewProfile      Operation = "view_profile"

	OpCreateReview       Operation = "create_review"
	OpEditReview         Operation = "edit_review"
	OpDeleteReview       Operation = "delete_review"
	OpListOwnReviews     Operation = "list_own_reviews"
	OpEditOwnProfile     Operation = "edit_own_profile"
	OpChangeOwnPassword  Operation = "change_own_password"
	OpLogout             Operation = "logout"
	OpResendVerification Operation = "resend_verification"

	OpAdminDashboard      Operation = "admin_dashboard"
	OpAdminListIdentities Operation = "admin_list_identities"
	OpAdminCreateIdentity Operation = "admin_create_identity"
	OpAdminEditIdentity   Operation = "admin_edit_identity"
	OpAdminDeleteIdentity Operation = "admin_delete_identity"
	OpAdminListReviews    Operation = "admin_list_reviews"
	OpAdminDeleteReview   Operation = "admin_delete_review"
)

// Target describes the resource an operation acts on. ReviewAuthorID is the
// reviewer of the review being touched; IdentityID is the identity being
// modified.
type Target struct {
	ReviewAuthorID string
	IdentityID     string
}

type access int

const (
	accessPublic access = iota
	accessAuthenticated
	accessAdministrator
)

type ownership int

const (
	ownershipNone ownership = iota
	// ownershipReviewAuthor admits the review's author or any administrator.
	ownershipReviewAuthor
	// ownershipSelf admits only the principal acting on its own identity.
	ownershipSelf
	// ownershipNotSelf rejects a principal acting on its own identity.
	ownershipNotSelf
)

type rule struct {
	access    access
	ownership ownership
}

var policy = map[Operation]rule{
	OpViewReviews:      {access: accessPublic},
	OpSearchIdentities: {access: accessPublic},
	OpViewProfile:      {access: accessPublic},

	OpCreateReview:       {access: accessAuthenticated},
	OpEditReview:         {access: accessAuthenticated, ownership: ownershipReviewAuthor},
	OpDeleteReview:       {access: accessAuthenticated, ownership: ownershipReviewAuthor},
	OpListOwnReviews:     {access: accessAuthenticated},
	OpEditOwnProfile:     {access: accessAuthenticated, ownership: ownershipSelf},
	OpChangeOwnPassword:  {access: accessAuthenticated, ownership: ownershipSelf},
	OpLogout:             {access: accessAuthenticated},
	OpResendVerification: {access: accessAuthenticated},

	OpAdminDashboard:      {access: accessAdministrator},
	OpAdminListIdentities: {access: accessAdministrator},
	OpAdminCreateIdentity: {access: accessAdministrator},
	OpAdminEditIdentity:   {access: accessAdministrator, ownership: ownershipNotSelf},
	OpAdminDeleteIdentity: {access: accessAdministrator, ownership: ownershipNotSelf},
	OpAdminListReviews:    {access: accessAdministrator},
	OpAdminDeleteReview:   {access: accessAdministrator},
}

// Authorize decides whether principal may perform op on target. A nil
// principal means an anonymous caller. Unknown operations are denied.
func Authorize(principal *Principal, op Operation, target Target) error {
	r, ok := policy[op]
	if !ok {
		return apperrors.NewForbidden("operation not permitted")
	}

	switch r.access {
	case accessPublic:
		return nil
	case accessAuthenticated:
		if principal == nil {
			return apperrors.NewUnauthorized("authentication required")
		}
	case accessAdministrator:
		if principal == nil {
			return apperrors.NewUnauthorized("authentication required")
		}
		if !principal.IsAdmin() {
			return apperrors.NewForbidden("administrator role required")
		}
	}

	switch r.ownership {
	case ownershipReviewAuthor:
		if principal.IsAdmin() || target.ReviewAuthorID == principal.ID {
			return nil
		}
		return apperrors.NewForbidden("only the author or an administrator may change this review")
	case ownershipSelf:
		if target.IdentityID != "" && target.IdentityID != principal.ID {
			return apperrors.NewForbidden("you may only change your own account")
		}
	case ownershipNotSelf:
		if target.IdentityID == principal.ID {
			return apperrors.NewForbidden("administrators cannot modify their own account here")
		}
	}
	return nil
}
