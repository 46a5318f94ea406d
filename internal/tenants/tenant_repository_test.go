package tenants

import (
	"context"
	"testing"

	"github.com/onsell/backoffice/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func TestListActiveClientsOfOwner_SQL(t *testing.T) {
	db, err := gorm.Open(mysql.New(mysql.Config{
		DSN:                       "onsell:secret@tcp(127.0.0.1:3306)/onsell?parseTime=true",
		SkipInitializeWithVersion: true,
	}), &gorm.Config{DryRun: true, DisableAutomaticPing: true})
	require.NoError(t, err)

	var captured string
	require.NoError(t, db.Callback().Query().After("gorm:query").Register("test:capture", func(tx *gorm.DB) {
		if _, ok := tx.Statement.Dest.(*[]*model.Client); ok {
			captured = tx.Statement.SQL.String()
		}
	}))

	clients, err := NewTenantRepository(db).ListActiveClientsOfOwner(context.Background(), 7)
	require.NoError(t, err)
	assert.Empty(t, clients)
	assert.Contains(t, captured, "FROM `clients`")
	assert.Contains(t, captured, "agency_id IN (SELECT `id` FROM `agencies` WHERE owner_id = ?")
	assert.Contains(t, captured, "ORDER BY name")
}
