package tenants

import (
	"context"
	"errors"

	"github.com/onsell/backoffice/model"
	"gorm.io/gorm"
)

var (
	ErrAgencyNotFound = errors.New("agency not found")
	ErrClientNotFound = errors.New("client not found")
)

type TenantRepository interface {
	GetAgency(ctx context.Context, agencyID uint) (*model.Agency, error)
	GetClient(ctx context.Context, clientID uint) (*model.Client, error)
	GetAgencyByOwner(ctx context.Context, ownerID uint) (*model.Agency, error)
	ListActiveAgencies(ctx context.Context) ([]*model.Agency, error)
	ListActiveClients(ctx context.Context) ([]*model.Client, error)
	ListActiveClientsOfOwner(ctx context.Context, ownerID uint) ([]*model.Client, error)
}

type tenantRepository struct {
	db *gorm.DB
}

func (r *tenantRepository) GetAgency(ctx context.Context, agencyID uint) (*model.Agency, error) {
	var agency model.Agency
	err := r.db.WithContext(ctx).Where("id = ?", agencyID).First(&agency).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAgencyNotFound
	}
	if err != nil {
		return nil, err
	}
	return &agency, nil
}

func (r *tenantRepository) GetClient(ctx context.Context, clientID uint) (*model.Client, error) {
	var client model.Client
	err := r.db.WithContext(ctx).Where("id = ?", clientID).First(&client).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrClientNotFound
	}
	if err != nil {
		return nil, err
	}
	return &client, nil
}

func (r *tenantRepository) GetAgencyByOwner(ctx context.Context, ownerID uint) (*model.Agency, error) {
	var agency model.Agency
	err := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).Order("id").First(&agency).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAgencyNotFound
	}
	if err != nil {
		return nil, err
	}
	return &agency, nil
}

func (r *tenantRepository) ListActiveAgencies(ctx context.Context) ([]*model.Agency, error) {
	var agencies []*model.Agency
	err := r.db.WithContext(ctx).Where("active = ?", true).Order("name").Find(&agencies).Error
	return agencies, err
}

func (r *tenantRepository) ListActiveClients(ctx context.Context) ([]*model.Client, error) {
	var clients []*model.Client
	err := r.db.WithContext(ctx).Where("active = ?", true).Order("name").Find(&clients).Error
	return clients, err
}

// ListActiveClientsOfOwner lists the active clients of every agency owned by
// ownerID.
func (r *tenantRepository) ListActiveClientsOfOwner(ctx context.Context, ownerID uint) ([]*model.Client, error) {
	var clients []*model.Client
	err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Where("agency_id IN (?)", r.db.Model(&model.Agency{}).Select("id").Where("owner_id = ?", ownerID)).
		Order("name").
		Find(&clients).Error
	return clients, err
}

func NewTenantRepository(db *gorm.DB) TenantRepository {
	return &tenantRepository{db}
}
