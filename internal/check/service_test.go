package check

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"knowledgecheckr/internal/models"
	"knowledgecheckr/internal/schema"
)

func newTestService(t *testing.T) *Service {
	return NewService(newTestRepository(t), nil, zap.NewNop().Sugar())
}

func TestHasCollaborativePermissions(t *testing.T) {
	check := &models.KnowledgeCheck{
		OwnerID: "owner-1",
		Collaborators: []models.Collaborator{
			{UserID: "collab-1"},
		},
	}

	assert.True(t, HasCollaborativePermissions(check, "owner-1"))
	assert.True(t, HasCollaborativePermissions(check, "collab-1"))
	assert.False(t, HasCollaborativePermissions(check, "stranger"))
	assert.False(t, HasCollaborativePermissions(check, ""))
	assert.False(t, HasCollaborativePermissions(nil, "owner-1"))
}

func TestSaveCheckCreatesUnderCallerOwnership(t *testing.T) {
	svc := newTestService(t)
	check := fixtureCheck(t, "claimed-owner")

	require.NoError(t, svc.SaveCheck("real-owner", check))

	stored, err := svc.repo.GetCheckByID(check.ID)
	require.NoError(t, err)
	assert.Equal(t, "real-owner", stored.OwnerID)
}

func TestSaveCheckRejectsNonCollaborators(t *testing.T) {
	svc := newTestService(t)
	check := fixtureCheck(t, "")
	require.NoError(t, svc.SaveCheck("owner-1", check))

	check.Name = "Hijacked"
	err := svc.SaveCheck("stranger", check)
	assert.ErrorIs(t, err, ErrForbidden)

	err = svc.SaveCheck("", check)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestSaveCheckPreservesShareKeyAndOwner(t *testing.T) {
	svc := newTestService(t)
	check := fixtureCheck(t, "")
	require.NoError(t, svc.SaveCheck("owner-1", check))
	originalShareKey := check.ShareKey

	check.ShareKey = uuid.NewString()
	check.OwnerID = "thief"
	check.Name = "Renamed"
	require.NoError(t, svc.SaveCheck("owner-1", check))

	stored, err := svc.repo.GetCheckByID(check.ID)
	require.NoError(t, err)
	assert.Equal(t, originalShareKey, stored.ShareKey)
	assert.Equal(t, "owner-1", stored.OwnerID)
	assert.Equal(t, "Renamed", stored.Name)
}

func TestSaveCheckAllowsCollaboratorEdits(t *testing.T) {
	svc := newTestService(t)
	check := fixtureCheck(t, "")
	check.Collaborators = []models.Collaborator{{UserID: "collab-1"}}
	schema.ApplyDefaults(check)
	require.NoError(t, svc.SaveCheck("owner-1", check))

	check.Name = "Edited by collaborator"
	require.NoError(t, svc.SaveCheck("collab-1", check))

	stored, err := svc.repo.GetCheckByID(check.ID)
	require.NoError(t, err)
	assert.Equal(t, "Edited by collaborator", stored.Name)
}

func TestSaveCheckFailsOnUnknownQuestionCategory(t *testing.T) {
	svc := newTestService(t)
	check := fixtureCheck(t, "")
	check.Questions[0].Category = "No such category"
	check.Questions[0].CategoryID = ""

	err := svc.SaveCheck("owner-1", check)
	var verr *schema.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Errors[0].Message, "No such category")
}

func TestGetCheckByShareKeyNotFound(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.GetCheckByShareKey("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetCheckByShareKeyPopulatesCategoryNames(t *testing.T) {
	svc := newTestService(t)
	check := fixtureCheck(t, "")
	require.NoError(t, svc.SaveCheck("owner-1", check))

	loaded, err := svc.GetCheckByShareKey(check.ShareKey)
	require.NoError(t, err)
	for _, q := range loaded.Questions {
		assert.NotEmpty(t, q.Category, "question %s has no category name", q.ID)
	}
}

func TestServiceDeleteCheck(t *testing.T) {
	svc := newTestService(t)
	check := fixtureCheck(t, "")
	require.NoError(t, svc.SaveCheck("owner-1", check))

	deleted, err := svc.DeleteCheck("stranger", check.ID)
	require.NoError(t, err)
	assert.False(t, deleted)

	deleted, err = svc.DeleteCheck("owner-1", check.ID)
	require.NoError(t, err)
	assert.True(t, deleted)
}

func TestAddCategoryDeduplicatesThroughService(t *testing.T) {
	svc := newTestService(t)
	check := fixtureCheck(t, "")
	require.NoError(t, svc.SaveCheck("owner-1", check))

	first, err := svc.AddCategory("owner-1", check.ID, "Extra", nil)
	require.NoError(t, err)
	second, err := svc.AddCategory("owner-1", check.ID, "Extra", nil)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	_, err = svc.AddCategory("stranger", check.ID, "Nope", nil)
	assert.ErrorIs(t, err, ErrForbidden)
}
