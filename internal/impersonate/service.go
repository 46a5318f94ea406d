package impersonate

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"github.com/onsell/backoffice/internal/acting"
	"github.com/onsell/backoffice/internal/metrics"
	"github.com/onsell/backoffice/internal/tenants"
	"github.com/onsell/backoffice/model"
)

type RoleManager interface {
	GetRoles(ctx context.Context, userID uint) ([]string, error)
	GrantRole(ctx context.Context, userID uint, role string) error
	RevokeRole(ctx context.Context, userID uint, role string) error
	ReplaceRoles(ctx context.Context, userID uint, roles []string) error
}

// Tenant is the agency or client a request operates on.
type Tenant struct {
	Type     acting.TenantType `json:"type"`
	ID       uint              `json:"id"`
	Name     string            `json:"name"`
	AgencyID uint              `json:"agency_id"`
}

type TargetInfo struct {
	ID       uint   `json:"id"`
	Name     string `json:"name"`
	AgencyID uint   `json:"agency_id,omitempty"`
}

type Targets struct {
	Agencies []TargetInfo `json:"agencies,omitempty"`
	Clients  []TargetInfo `json:"clients,omitempty"`
}

type Service struct {
	roles     RoleManager
	tenants   tenants.TenantRepository
	snapshots *SnapshotStore
	now       func() time.Time
}

func NewService(roles RoleManager, tenantRepo tenants.TenantRepository, snapshots *SnapshotStore) *Service {
	return &Service{
		roles:     roles,
		tenants:   tenantRepo,
		snapshots: snapshots,
		now:       time.Now,
	}
}

func (s *Service) loadTarget(ctx context.Context, targetType acting.TenantType, targetID uint) (*Tenant, error) {
	switch targetType {
	case acting.TenantAgency:
		agency, err := s.tenants.GetAgency(ctx, targetID)
		if errors.Is(err, tenants.ErrAgencyNotFound) {
			return nil, ErrTargetNotFound
		}
		if err != nil {
			return nil, err
		}
		if !agency.Active {
			return nil, ErrTargetNotFound
		}
		return &Tenant{Type: targetType, ID: agency.ID, Name: agency.Name, AgencyID: agency.ID}, nil
	case acting.TenantClient:
		client, err := s.tenants.GetClient(ctx, targetID)
		if errors.Is(err, tenants.ErrClientNotFound) {
			return nil, ErrTargetNotFound
		}
		if err != nil {
			return nil, err
		}
		if !client.Active {
			return nil, ErrTargetNotFound
		}
		return &Tenant{Type: targetType, ID: client.ID, Name: client.Name, AgencyID: client.AgencyID}, nil
	default:
		return nil, ErrInvalidTargetType
	}
}

// authorize reports whether ac may act as target. Admins may impersonate any
// tenant; agency owners only clients of an agency they own.
func (s *Service) authorize(ctx context.Context, ac *acting.Context, target *Tenant) error {
	if ac.HasRole(model.RoleAdmin) {
		return nil
	}
	if target.Type != acting.TenantClient || !ac.HasRole(model.RoleAgencyOwner) {
		return ErrPermissionDenied
	}
	agency, err := s.tenants.GetAgency(ctx, target.AgencyID)
	if errors.Is(err, tenants.ErrAgencyNotFound) {
		return ErrPermissionDenied
	}
	if err != nil {
		return err
	}
	if agency.OwnerID != ac.ActorID {
		return ErrPermissionDenied
	}
	return nil
}

// Start makes ac act as the given tenant. The actor's full role set is
// snapshotted before the transient role is granted; a chained start keeps the
// first snapshot and the original user.
func (s *Service) Start(ctx context.Context, ac *acting.Context, targetType acting.TenantType, targetID uint) (*acting.Impersonation, error) {
	if !targetType.Valid() {
		return nil, ErrInvalidTargetType
	}
	target, err := s.loadTarget(ctx, targetType, targetID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, ac, target); err != nil {
		return nil, err
	}

	snap, err := s.snapshots.Get(ctx, ac.ActorID)
	if err != nil {
		return nil, err
	}
	switch {
	case snap != nil && ac.IsImpersonating():
		prev := ac.Impersonation.Target.Type.TransientRole()
		if prev != targetType.TransientRole() && !slices.Contains(snap.Roles, prev) {
			if err := s.roles.RevokeRole(ctx, ac.ActorID, prev); err != nil {
				return nil, err
			}
		}
	case snap != nil:
		// left over from a session that ended without stopping
		if err := s.roles.ReplaceRoles(ctx, ac.ActorID, snap.Roles); err != nil {
			return nil, err
		}
	default:
		roles, err := s.roles.GetRoles(ctx, ac.ActorID)
		if err != nil {
			return nil, err
		}
		if ac.IsImpersonating() {
			prev := ac.Impersonation.Target.Type.TransientRole()
			roles = slices.DeleteFunc(roles, func(r string) bool { return r == prev })
			if err := s.roles.RevokeRole(ctx, ac.ActorID, prev); err != nil {
				return nil, err
			}
		}
		snap = &RoleSnapshot{ActorID: ac.ActorID, Roles: roles}
	}

	snap.TargetType = target.Type
	snap.TargetID = target.ID
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = s.now()
	}
	if err := s.snapshots.Save(ctx, snap); err != nil {
		return nil, err
	}
	if err := s.roles.GrantRole(ctx, ac.ActorID, targetType.TransientRole()); err != nil {
		return nil, err
	}

	original := acting.OriginalUser{ID: ac.ActorID, Name: ac.ActorName, Role: acting.PrimaryRole(snap.Roles)}
	if ac.IsImpersonating() {
		original = ac.Impersonation.OriginalUser
	}
	metrics.Impersonations.WithLabelValues("start", string(target.Type)).Inc()
	slog.Info("Impersonation started", "user_id", ac.ActorID, "target_type", target.Type, "target_id", target.ID, "ip", ac.IP)
	return &acting.Impersonation{
		OriginalUser: original,
		Target:       acting.Target{ID: target.ID, Name: target.Name, Type: target.Type},
	}, nil
}

// Stop ends the impersonation of ac and restores the roles held before it
// started. It returns the dashboard path of the restored primary role.
func (s *Service) Stop(ctx context.Context, ac *acting.Context) (string, error) {
	snap, err := s.snapshots.Get(ctx, ac.ActorID)
	if err != nil {
		return "", err
	}

	var roles []string
	switch {
	case snap != nil:
		if err := s.roles.ReplaceRoles(ctx, ac.ActorID, snap.Roles); err != nil {
			return "", err
		}
		if err := s.snapshots.Delete(ctx, ac.ActorID); err != nil {
			return "", err
		}
		roles = snap.Roles
	case ac.IsImpersonating():
		// no snapshot: drop the transient role and re-grant the recorded one
		imp := ac.Impersonation
		if err := s.roles.RevokeRole(ctx, ac.ActorID, imp.Target.Type.TransientRole()); err != nil {
			return "", err
		}
		if imp.OriginalUser.Role != "" {
			if err := s.roles.GrantRole(ctx, ac.ActorID, imp.OriginalUser.Role); err != nil {
				return "", err
			}
		}
		if roles, err = s.roles.GetRoles(ctx, ac.ActorID); err != nil {
			return "", err
		}
	default:
		return acting.DashboardFor(ac.PrimaryRole()), nil
	}

	targetType := ""
	if ac.IsImpersonating() {
		targetType = string(ac.Impersonation.Target.Type)
	}
	metrics.Impersonations.WithLabelValues("stop", targetType).Inc()
	slog.Info("Impersonation stopped", "user_id", ac.ActorID, "ip", ac.IP)
	return acting.DashboardFor(acting.PrimaryRole(roles)), nil
}

// RestorePending restores roles left granted by an impersonation whose
// session ended without stopping. It reports whether anything was restored.
func (s *Service) RestorePending(ctx context.Context, actorID uint) (bool, error) {
	snap, err := s.snapshots.Get(ctx, actorID)
	if err != nil || snap == nil {
		return false, err
	}
	if err := s.roles.ReplaceRoles(ctx, actorID, snap.Roles); err != nil {
		return false, err
	}
	if err := s.snapshots.Delete(ctx, actorID); err != nil {
		return false, err
	}
	slog.Warn("Restored roles from stale impersonation", "user_id", actorID, "target_type", snap.TargetType, "target_id", snap.TargetID)
	return true, nil
}

// ResolveEffectiveTenant returns the tenant of the expected type that a
// request operates on: the impersonation target when it matches, otherwise
// the actor's own agency or client.
func (s *Service) ResolveEffectiveTenant(ctx context.Context, ac *acting.Context, expected acting.TenantType) (*Tenant, error) {
	if !expected.Valid() {
		return nil, ErrInvalidTargetType
	}
	if ac.IsImpersonating() && ac.Impersonation.Target.Type == expected {
		tenant, err := s.loadTarget(ctx, expected, ac.Impersonation.Target.ID)
		if errors.Is(err, ErrTargetNotFound) {
			return nil, ErrTenantNotFound
		}
		return tenant, err
	}

	switch expected {
	case acting.TenantAgency:
		var (
			agency *model.Agency
			err    error
		)
		if ac.AgencyID != nil {
			agency, err = s.tenants.GetAgency(ctx, *ac.AgencyID)
		} else {
			agency, err = s.tenants.GetAgencyByOwner(ctx, ac.ActorID)
		}
		if errors.Is(err, tenants.ErrAgencyNotFound) {
			return nil, ErrTenantNotFound
		}
		if err != nil {
			return nil, err
		}
		return &Tenant{Type: expected, ID: agency.ID, Name: agency.Name, AgencyID: agency.ID}, nil
	default:
		if ac.ClientID == nil {
			return nil, ErrTenantNotFound
		}
		client, err := s.tenants.GetClient(ctx, *ac.ClientID)
		if errors.Is(err, tenants.ErrClientNotFound) {
			return nil, ErrTenantNotFound
		}
		if err != nil {
			return nil, err
		}
		return &Tenant{Type: expected, ID: client.ID, Name: client.Name, AgencyID: client.AgencyID}, nil
	}
}

// ListTargets lists the tenants ac may impersonate.
func (s *Service) ListTargets(ctx context.Context, ac *acting.Context) (*Targets, error) {
	targets := &Targets{}
	switch {
	case ac.HasRole(model.RoleAdmin):
		agencies, err := s.tenants.ListActiveAgencies(ctx)
		if err != nil {
			return nil, err
		}
		clients, err := s.tenants.ListActiveClients(ctx)
		if err != nil {
			return nil, err
		}
		targets.Agencies = agencyTargets(agencies)
		targets.Clients = clientTargets(clients)
	case ac.HasRole(model.RoleAgencyOwner):
		clients, err := s.tenants.ListActiveClientsOfOwner(ctx, ac.ActorID)
		if err != nil {
			return nil, err
		}
		targets.Clients = clientTargets(clients)
	}
	return targets, nil
}

func agencyTargets(agencies []*model.Agency) []TargetInfo {
	out := make([]TargetInfo, 0, len(agencies))
	for _, a := range agencies {
		out = append(out, TargetInfo{ID: a.ID, Name: a.Name})
	}
	return out
}

func clientTargets(clients []*model.Client) []TargetInfo {
	out := make([]TargetInfo, 0, len(clients))
	for _, c := range clients {
		out = append(out, TargetInfo{ID: c.ID, Name: c.Name, AgencyID: c.AgencyID})
	}
	return out
}
