package admin

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/seqr-matchmaker/internal/tags"
)

// MockMigrator is a mock implementation of the Migrator interface
type MockMigrator struct {
	mock.Mock
}

func (m *MockMigrator) Up(ctx context.Context) error   { return m.Called(ctx).Error(0) }
func (m *MockMigrator) Down(ctx context.Context) error { return m.Called(ctx).Error(0) }
func (m *MockMigrator) Close() error                   { return m.Called().Error(0) }

func unusedDeps(t *testing.T) Dependencies {
	return Dependencies{
		OpenTagStore: func() (tags.Store, error) {
			t.Fatal("tag store must not be opened")
			return nil, nil
		},
		OpenMigrator: func() (Migrator, error) {
			t.Fatal("migrator must not be opened")
			return nil, nil
		},
	}
}

func TestCLI_CopyProjectTags_RequiredArguments(t *testing.T) {
	logger, _ := test.NewNullLogger()
	cli := NewCLI(&bytes.Buffer{}, logger, unusedDeps(t))
	ctx := context.Background()

	tests := []struct {
		args []string
		want string
	}{
		{nil, "the following arguments are required: --source, --target"},
		{[]string{"--source=R0001_1kg"}, "the following arguments are required: --target"},
		{[]string{"--target", "R0003_test"}, "the following arguments are required: --source"},
	}

	for _, tt := range tests {
		err := cli.Run(ctx, append([]string{"copy_project_tags"}, tt.args...))
		require.Error(t, err)
		assert.Equal(t, tt.want, err.Error())
		assert.True(t, IsUsageError(err))
	}

	err := cli.Run(ctx, []string{"copy-project-tags", "--source=a", "--target=b", "--force"})
	assert.True(t, IsUsageError(err))

	err = cli.Run(ctx, []string{"copy-project-tags", "--source=a", "--target=b", "extra"})
	assert.True(t, IsUsageError(err))
}

func TestCLI_CopyProjectTags(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "tags.db")
	store, err := tags.NewSQLiteStore(dbPath)
	require.NoError(t, err)

	source := &tags.Project{GUID: "R0001_1kg", Name: "1kg project"}
	target := &tags.Project{GUID: "R0003_test", Name: "Test project"}
	require.NoError(t, store.CreateProject(ctx, source))
	require.NoError(t, store.CreateProject(ctx, target))
	for _, name := range []string{"Review", "Excluded", "Known gene for phenotype"} {
		require.NoError(t, store.CreateTagType(ctx, &tags.TagType{ProjectID: source.ID, Name: name}))
	}

	logger, hook := test.NewNullLogger()
	var out bytes.Buffer
	cli := NewCLI(&out, logger, Dependencies{
		OpenTagStore: func() (tags.Store, error) { return store, nil },
	})

	require.NoError(t, cli.Run(ctx, []string{"copy-project-tags", "--source=R0001_1kg", "--target=R0003_test"}))

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "Saved tag Known gene for phenotype (new id = 6)", hook.LastEntry().Message)
	assert.Contains(t, out.String(), "Copied 3 tag(s) from R0001_1kg to R0003_test")

	// the command closes the store it was handed
	reopened, err := tags.NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer reopened.Close()

	targetTags, err := reopened.ListTagTypes(ctx, target.ID)
	require.NoError(t, err)
	require.Len(t, targetTags, 3)
	assert.Equal(t, "Known gene for phenotype", targetTags[2].Name)
}

func TestCLI_CopyProjectTags_StoreError(t *testing.T) {
	logger, _ := test.NewNullLogger()
	openErr := errors.New("connection refused")
	cli := NewCLI(&bytes.Buffer{}, logger, Dependencies{
		OpenTagStore: func() (tags.Store, error) { return nil, openErr },
	})

	err := cli.Run(context.Background(), []string{"copy-project-tags", "--source=a", "--target=b"})
	assert.True(t, errors.Is(err, openErr))
	assert.False(t, IsUsageError(err))
}

func TestCLI_Migrate(t *testing.T) {
	ctx := context.Background()
	logger, _ := test.NewNullLogger()

	for _, direction := range []string{"up", "down"} {
		t.Run(direction, func(t *testing.T) {
			migrator := new(MockMigrator)
			method := "Up"
			if direction == "down" {
				method = "Down"
			}
			migrator.On(method, ctx).Return(nil)
			migrator.On("Close").Return(nil)

			cli := NewCLI(&bytes.Buffer{}, logger, Dependencies{
				OpenMigrator: func() (Migrator, error) { return migrator, nil },
			})
			require.NoError(t, cli.Run(ctx, []string{"migrate", direction}))
			migrator.AssertExpectations(t)
		})
	}

	cli := NewCLI(&bytes.Buffer{}, logger, unusedDeps(t))
	assert.True(t, IsUsageError(cli.Run(ctx, []string{"migrate"})))
	assert.True(t, IsUsageError(cli.Run(ctx, []string{"migrate", "sideways"})))
}

func TestCLI_Help(t *testing.T) {
	logger, _ := test.NewNullLogger()
	var out bytes.Buffer
	cli := NewCLI(&out, logger, unusedDeps(t))

	require.NoError(t, cli.Run(context.Background(), nil))
	assert.Contains(t, out.String(), "copy-project-tags")

	err := cli.Run(context.Background(), []string{"reindex"})
	assert.True(t, IsUsageError(err))
	assert.Equal(t, "unknown command: reindex", err.Error())
}
