package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusEnums(t *testing.T) {
	assert.True(t, RoleOwner.Valid())
	assert.True(t, RoleCustomer.Valid())
	assert.False(t, Role("admin").Valid())

	assert.True(t, EquipmentAvailable.Valid())
	assert.False(t, EquipmentStatus("rented").Valid())

	for _, s := range []RequestStatus{RequestPending, RequestAccepted, RequestCompleted, RequestCancelled} {
		assert.True(t, s.Valid(), s)
	}
	assert.False(t, RequestStatus("rejected").Valid())

	assert.False(t, RequestPending.Terminal())
	assert.False(t, RequestAccepted.Terminal())
	assert.True(t, RequestCompleted.Terminal())
	assert.True(t, RequestCancelled.Terminal())
}

func TestCategories(t *testing.T) {
	cats := Categories()
	assert.Len(t, cats, 10)
	assert.True(t, CategoryCrane.Valid())
	assert.False(t, Category("tractor").Valid())

	// Callers get a copy.
	cats[0] = "mutated"
	assert.Equal(t, CategoryWoodSaw, Categories()[0])
}

func TestStringList(t *testing.T) {
	t.Run("ValueNil", func(t *testing.T) {
		v, err := StringList(nil).Value()
		require.NoError(t, err)
		assert.Equal(t, "[]", v)
	})

	t.Run("RoundTrip", func(t *testing.T) {
		v, err := StringList{"/uploads/a.png", "/uploads/b.jpg"}.Value()
		require.NoError(t, err)

		var out StringList
		require.NoError(t, out.Scan(v))
		assert.Equal(t, StringList{"/uploads/a.png", "/uploads/b.jpg"}, out)
	})

	t.Run("ScanBytesAndNil", func(t *testing.T) {
		var out StringList
		require.NoError(t, out.Scan([]byte(`["x"]`)))
		assert.Equal(t, StringList{"x"}, out)

		require.NoError(t, out.Scan(nil))
		assert.Empty(t, out)
	})

	t.Run("ScanInvalid", func(t *testing.T) {
		var out StringList
		assert.Error(t, out.Scan(42))
		assert.Error(t, out.Scan("not json"))
	})
}

func TestUserSummary(t *testing.T) {
	u := &User{ID: 7, Name: "Ali", Phone: "0911234567", City: "Tripoli", PasswordHash: "secret"}
	s := u.Summary()
	assert.Equal(t, &UserSummary{ID: 7, Name: "Ali", Phone: "0911234567", City: "Tripoli"}, s)
}
