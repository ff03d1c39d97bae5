package migrations_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koba/db-migrate/internal/migrations"
)

func ids(records []*migrations.Migration) []string {
	out := make([]string, 0, len(records))
	for _, m := range records {
		out = append(out, m.ID)
	}
	return out
}

func TestOrderLinearChain(t *testing.T) {
	records := []*migrations.Migration{
		record("0003_posts", "0002_users", false),
		record("0001_initial", "", true),
		record("0002_users", "0001_initial", false),
	}

	ordered, err := migrations.Order(records)
	require.NoError(t, err)
	assert.Equal(t, []string{"0001_initial", "0002_users", "0003_posts"}, ids(ordered))
}

func TestOrderCollapsesReplaceChain(t *testing.T) {
	records := []*migrations.Migration{
		record("0001_initial", "", true),
		record("0002_users", "0001_initial", false),
		record("0003_posts", "0002_users", false),
		record("0002_new", "0001_initial", false, "0002_users", "0003_posts"),
	}

	ordered, err := migrations.Order(records)
	require.NoError(t, err)
	assert.Equal(t, []string{"0001_initial", "0002_new"}, ids(ordered))
}

func TestOrderEmptySet(t *testing.T) {
	ordered, err := migrations.Order(nil)
	require.NoError(t, err)
	assert.Empty(t, ordered)
}

func TestOrderFailsOnInvalidInput(t *testing.T) {
	records := []*migrations.Migration{
		record("0001_initial", "", true),
		record("0002_users", "0001_initial", false),
		record("0002_posts", "0001_initial", false),
	}

	_, err := migrations.Order(records)
	assert.True(t, migrations.IsKind(err, migrations.ErrBranchingDetected))
}

func TestOrderDetectsOrphan(t *testing.T) {
	// 0003 depends on the replaced 0002, so the chain from the initial
	// record never reaches it.
	records := []*migrations.Migration{
		record("0001_initial", "", true),
		record("0002_users", "0001_initial", false),
		record("0002_new", "0001_initial", false, "0002_users"),
		record("0003_posts", "0002_users", false),
	}

	_, err := migrations.Order(records)
	assert.True(t, migrations.IsKind(err, migrations.ErrOrphanedMigration))
}

func TestCleanDropsReplacedRecords(t *testing.T) {
	records := []*migrations.Migration{
		record("0001_initial", "", true),
		record("0002_users", "0001_initial", false),
		record("0002_new", "0001_initial", false, "0002_users"),
	}

	active := migrations.Clean(records)
	assert.Equal(t, []string{"0001_initial", "0002_new"}, ids(active))
}
