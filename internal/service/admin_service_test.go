package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"fanwiki/internal/models"
)

func TestDaysLeftText(t *testing.T) {
	base := models.NewDate(2024, time.January, 1)

	tests := []struct {
		days int
		want string
	}{
		{days: 0, want: "There is nothing else to archive here. We archived it all. Thank you so much."},
		{days: 1, want: "We have 1 day left to archive. One final push!"},
		{days: 12, want: "We have 12 days left to archive. We're at the finish line."},
		{days: -3, want: "We have -3 days left to archive. Did someone put a wrong date on one of these?"},
		{days: 45, want: "We have 45 days left to archive. Put otherwise, it's about 1 month."},
		{days: 400, want: "We have 400 days left to archive. Put otherwise, it's about 13 months, or about 1 year."},
		{days: 800, want: "We have 800 days left to archive. Put otherwise, it's about 26 months, or about 2 years."},
	}

	for _, tt := range tests {
		newer := models.Date{Time: base.AddDate(0, 0, tt.days)}
		assert.Equal(t, tt.want, DaysLeftText(base, newer))
	}
}

func TestSetValue(t *testing.T) {
	values := new(MockKeyValueRepository)
	svc := NewAdminService(values)
	admin := &models.User{ID: 1, UserType: models.UserAdmin}
	values.On("Set", mock.Anything, "discord_invite_url", "https://discord.gg/abc").Return(nil)

	assert.NoError(t, svc.SetValue(context.Background(), admin, "discord_invite_url", " https://discord.gg/abc "))
	assert.Equal(t, CodeBadRequest, CodeOf(svc.SetValue(context.Background(), admin, "discord_invite_url", "ftp://x")))
	assert.Equal(t, CodeBadRequest, CodeOf(svc.SetValue(context.Background(), admin, "motd", "hi")))
	assert.Equal(t, CodeForbidden, CodeOf(svc.SetValue(context.Background(), &models.User{ID: 2, UserType: models.UserUploader}, "discord_invite_url", "")))
	assert.Equal(t, CodeUnauthorized, CodeOf(svc.SetValue(context.Background(), nil, "discord_invite_url", "")))
	values.AssertNumberOfCalls(t, "Set", 1)
}

func TestArchivalPins(t *testing.T) {
	values := new(MockKeyValueRepository)
	svc := NewAdminService(values)
	uploader := &models.User{ID: 2, UserType: models.UserUploader}

	_, err := svc.Progress(context.Background(), &models.User{ID: 3, UserType: models.UserMember})
	assert.Equal(t, CodeNotFound, CodeOf(err))

	assert.Equal(t, CodeBadRequest, CodeOf(svc.SetPin(context.Background(), uploader, "middle_sfw", models.Pin{Date: models.Today()})))

	pin := models.Pin{Link: "https://discord.com/channels/1/2/3", Date: models.NewDate(2024, time.March, 1)}
	values.On("Set", mock.Anything, "art_archival_pin_old_sfw", `{"link":"https://discord.com/channels/1/2/3","date":"2024-03-01"}`).Return(nil)
	require.NoError(t, svc.SetPin(context.Background(), uploader, "old_sfw", pin))

	stored := `{"link":"https://discord.com/channels/1/2/3","date":"2024-03-01"}`
	newer := `{"link":"https://discord.com/channels/1/2/4","date":"2024-03-02"}`
	values.On("Get", mock.Anything, "art_archival_pin_old_sfw").Return(&stored, nil)
	values.On("Get", mock.Anything, "art_archival_pin_new_sfw").Return(&newer, nil)
	values.On("Get", mock.Anything, "art_archival_pin_old_nsfw").Return(nil, nil)
	values.On("Get", mock.Anything, "art_archival_pin_new_nsfw").Return(nil, nil)

	progress, err := svc.Progress(context.Background(), uploader)

	require.NoError(t, err)
	assert.Equal(t, pin, progress.Pins["old_sfw"])
	assert.Equal(t, "discord://-/channels/1/2/3", progress.Pins["old_sfw"].AppLink())
	assert.Equal(t, "We have 1 day left to archive. One final push!", progress.SFWDaysLeft)
	assert.True(t, progress.Pins["old_nsfw"].Date.IsZero())
}
