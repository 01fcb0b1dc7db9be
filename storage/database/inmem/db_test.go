package inmemdb

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thinkquality/thinkquality/core"
	"github.com/thinkquality/thinkquality/core/company"
)

func TestDB_WithTx(t *testing.T) {
	db := NewDB()
	repo := NewCompanyRepository(db)
	ctx := context.Background()
	errBoom := errors.New("boom")

	t.Run("rollback", func(t *testing.T) {
		err := db.WithTx(ctx, func(exec core.DBExecutor) error {
			_, err := repo.CreateCompany(ctx, company.Company{Name: "Rolled back"}, exec)
			require.NoError(t, err)
			return errBoom
		})
		assert.Equal(t, errBoom, err)

		list, err := repo.QueryCompanies(ctx, &company.QueryFilter{}, nil)
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("writes wait for the running transaction", func(t *testing.T) {
		started, release := make(chan struct{}), make(chan struct{})
		result := make(chan error, 1)
		go func() {
			result <- db.WithTx(ctx, func(exec core.DBExecutor) error {
				if _, err := repo.CreateCompany(ctx, company.Company{Name: "Rolled back"}, exec); err != nil {
					return err
				}
				close(started)
				<-release
				return errBoom
			})
		}()
		<-started

		written := make(chan error, 1)
		go func() {
			_, err := repo.CreateCompany(ctx, company.Company{Name: "Kept"})
			written <- err
		}()
		select {
		case <-written:
			t.Fatal("write went through during the transaction")
		case <-time.After(20 * time.Millisecond):
		}

		close(release)
		require.Equal(t, errBoom, <-result)
		require.NoError(t, <-written)

		list, err := repo.QueryCompanies(ctx, &company.QueryFilter{}, nil)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "Kept", list[0].Name)
	})
}
