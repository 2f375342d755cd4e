package authorization

import (
	"context"
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	obscontext "github.com/smallbiznis/customsledger/internal/observability/context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupAuthorization(t *testing.T) Service {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)

	enforcer, err := NewEnforcer(db)
	require.NoError(t, err)

	return NewService(Params{Log: zap.NewNop(), Enforcer: enforcer})
}

func withRole(role string) context.Context {
	return obscontext.WithActor(context.Background(), obscontext.ActorTypeUser, "u-1", role)
}

func TestAuthorizeRoleHierarchy(t *testing.T) {
	svc := setupAuthorization(t)

	cases := []struct {
		role   string
		object string
		action string
		want   error
	}{
		{RoleViewer, ObjectSummary, ActionView, nil},
		{RoleViewer, ObjectDistribution, ActionCreate, ErrForbidden},
		{RoleClerk, ObjectDistribution, ActionCreate, nil},
		{RoleClerk, ObjectSummary, ActionView, nil},
		{RoleClerk, ObjectDistribution, ActionDistributionReset, ErrForbidden},
		{RoleOperator, ObjectDistribution, ActionDistributionReset, nil},
		{RoleSystem, ObjectLineItem, ActionLineItemAllocate, nil},
		{"stranger", ObjectSummary, ActionView, ErrForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.role+"/"+tc.action, func(t *testing.T) {
			err := svc.Authorize(withRole(tc.role), tc.object, tc.action)
			if tc.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestAuthorizeRequiresRole(t *testing.T) {
	svc := setupAuthorization(t)
	err := svc.Authorize(context.Background(), ObjectSummary, ActionView)
	assert.ErrorIs(t, err, ErrInvalidActor)
}

func TestSeedIsIdempotent(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)

	_, err = NewEnforcer(db)
	require.NoError(t, err)
	enforcer, err := NewEnforcer(db)
	require.NoError(t, err)

	policies, err := enforcer.GetPolicy()
	require.NoError(t, err)
	assert.Len(t, policies, 21)
}
