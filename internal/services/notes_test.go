package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ananth-NQI/unibox-backend/internal/models"
	"github.com/Ananth-NQI/unibox-backend/internal/storage"
)

func TestNotesVisibilityAndOwnership(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	notes := NewNoteService(env.store)
	contact := env.createContact(t, &models.Contact{Email: strPtr("n@x.com")})

	author := Viewer{UserID: "u-1"}
	colleague := Viewer{UserID: "u-2"}
	admin := Viewer{UserID: "u-3", IsAdmin: true}
	private := true

	public, err := notes.Create(ctx, author, NoteInput{ContactID: contact.ID, Content: "Call back Monday, cc @maria and @maria"})
	require.NoError(t, err)
	assert.Equal(t, []string{"maria"}, []string(public.Mentions))

	secret, err := notes.Create(ctx, author, NoteInput{ContactID: contact.ID, Content: "VIP pricing", IsPrivate: &private, Mentions: []string{"u-9"}})
	require.NoError(t, err)

	list, err := notes.List(ctx, colleague, contact.ID, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), list.Total)

	list, err = notes.List(ctx, admin, contact.ID, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), list.Total)

	_, err = notes.Get(ctx, colleague, secret.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	got, err := notes.Get(ctx, author, secret.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"u-9"}, []string(got.Mentions))

	_, err = notes.Update(ctx, colleague, public.ID, NoteInput{Content: "hijack"})
	assert.ErrorIs(t, err, ErrForbidden)

	updated, err := notes.Update(ctx, admin, public.ID, NoteInput{Content: "Moved to Tuesday @li"})
	require.NoError(t, err)
	assert.Equal(t, []string{"li"}, []string(updated.Mentions))

	assert.ErrorIs(t, notes.Delete(ctx, colleague, secret.ID), ErrForbidden)
	require.NoError(t, notes.Delete(ctx, author, secret.ID))
	_, err = notes.Get(ctx, author, secret.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestNotesValidation(t *testing.T) {
	env := newTestEnv(t, nil)
	notes := NewNoteService(env.store)
	var verr *ValidationError

	_, err := notes.Create(context.Background(), Viewer{UserID: "u"}, NoteInput{Content: "x"})
	assert.ErrorAs(t, err, &verr)
	_, err = notes.Create(context.Background(), Viewer{UserID: "u"}, NoteInput{ContactID: "c"})
	assert.ErrorAs(t, err, &verr)
	_, err = notes.Create(context.Background(), Viewer{UserID: "u"}, NoteInput{ContactID: "missing", Content: "x"})
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = notes.List(context.Background(), Viewer{UserID: "u"}, "", 0, 0)
	assert.ErrorAs(t, err, &verr)
}
