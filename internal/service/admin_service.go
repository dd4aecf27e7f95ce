package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"fanwiki/internal/logger"
	"fanwiki/internal/models"
	"fanwiki/internal/repository"
)

const discordInviteKey = "discord_invite_url"

// PinNames are the four progress pins of the art archival project.
var PinNames = []string{"old_nsfw", "new_nsfw", "old_sfw", "new_sfw"}

func pinKey(name string) string {
	return "art_archival_pin_" + name
}

type ArchivalProgress struct {
	Pins         map[string]models.Pin
	NSFWDaysLeft string
	SFWDaysLeft  string
}

type AdminService interface {
	DiscordInvite(ctx context.Context) (*string, error)
	Values(ctx context.Context, requester *models.User) (map[string]string, error)
	SetValue(ctx context.Context, requester *models.User, name, value string) error
	Progress(ctx context.Context, requester *models.User) (*ArchivalProgress, error)
	SetPin(ctx context.Context, requester *models.User, name string, pin models.Pin) error
}

type adminService struct {
	values repository.KeyValueRepository
}

func NewAdminService(values repository.KeyValueRepository) AdminService {
	return &adminService{values: values}
}

func isAdmin(u *models.User) bool {
	return u != nil && u.UserType.Rank() >= models.UserAdmin.Rank()
}

func canSeeArchival(u *models.User) bool {
	return u != nil && u.UserType.Rank() >= models.UserUploader.Rank()
}

func (a *adminService) DiscordInvite(ctx context.Context) (*string, error) {
	value, err := a.values.Get(ctx, discordInviteKey)
	if err != nil {
		return nil, Internal(err)
	}
	if value != nil && *value == "" {
		return nil, nil
	}
	return value, nil
}

// Values lists the editable site values. Non-admins get NotFound so the panel stays hidden.
func (a *adminService) Values(ctx context.Context, requester *models.User) (map[string]string, error) {
	if !isAdmin(requester) {
		return nil, NotFound("page")
	}
	invite, err := a.DiscordInvite(ctx)
	if err != nil {
		return nil, err
	}

	values := map[string]string{discordInviteKey: ""}
	if invite != nil {
		values[discordInviteKey] = *invite
	}
	return values, nil
}

func (a *adminService) SetValue(ctx context.Context, requester *models.User, name, value string) error {
	if requester == nil {
		return Unauthorized()
	}
	if !isAdmin(requester) {
		return Forbidden()
	}

	switch name {
	case discordInviteKey:
		value = strings.TrimSpace(value)
		if value != "" {
			if u, err := url.Parse(value); err != nil || u.Scheme != "https" || u.Host == "" {
				return BadRequest("the invite must be an https url")
			}
		}
	default:
		return BadRequest("invalid value name given")
	}

	if err := a.values.Set(ctx, name, value); err != nil {
		return Internal(err)
	}
	clog := logger.Component("admin")
	clog.Info().Str("value", name).Int32("by", requester.ID).Msg("site value changed")
	return nil
}

func (a *adminService) Progress(ctx context.Context, requester *models.User) (*ArchivalProgress, error) {
	if !canSeeArchival(requester) {
		return nil, NotFound("page")
	}

	progress := &ArchivalProgress{Pins: make(map[string]models.Pin, len(PinNames))}
	for _, name := range PinNames {
		raw, err := a.values.Get(ctx, pinKey(name))
		if err != nil {
			return nil, Internal(err)
		}
		var pin models.Pin
		if raw != nil {
			if err := json.Unmarshal([]byte(*raw), &pin); err != nil {
				return nil, Internal(fmt.Errorf("decode pin %s: %w", name, err))
			}
		}
		progress.Pins[name] = pin
	}

	progress.NSFWDaysLeft = DaysLeftText(progress.Pins["old_nsfw"].Date, progress.Pins["new_nsfw"].Date)
	progress.SFWDaysLeft = DaysLeftText(progress.Pins["old_sfw"].Date, progress.Pins["new_sfw"].Date)
	return progress, nil
}

func (a *adminService) SetPin(ctx context.Context, requester *models.User, name string, pin models.Pin) error {
	if requester == nil {
		return Unauthorized()
	}
	if !canSeeArchival(requester) {
		return Forbidden()
	}
	valid := false
	for _, n := range PinNames {
		valid = valid || n == name
	}
	if !valid {
		return BadRequest("unknown pin: " + name)
	}
	if pin.Date.IsZero() {
		return BadRequest("a pin needs a date")
	}

	raw, err := json.Marshal(pin)
	if err != nil {
		return Internal(fmt.Errorf("encode pin: %w", err))
	}
	if err := a.values.Set(ctx, pinKey(name), string(raw)); err != nil {
		return Internal(err)
	}
	clog := logger.Component("art archival")
	clog.Info().Str("pin", name).Str("date", pin.Date.String()).Int32("by", requester.ID).Msg("pin moved")
	return nil
}

// DaysLeftText describes how far the older pin still is from the newer one.
func DaysLeftText(older, newer models.Date) string {
	days := int(newer.Sub(older.Time).Hours() / 24)

	switch {
	case days == 0:
		return "There is nothing else to archive here. We archived it all. Thank you so much."
	case days == 1:
		return "We have 1 day left to archive. One final push!"
	case days < 0:
		return fmt.Sprintf("We have %d days left to archive. Did someone put a wrong date on one of these?", days)
	case days < 30:
		return fmt.Sprintf("We have %d days left to archive. We're at the finish line.", days)
	}

	text := fmt.Sprintf("We have %d days left to archive. Put otherwise, it's about %s", days, plural(days/30, "month"))
	if days/30 == 1 {
		return text + "."
	}
	return text + ", or about " + plural(days/30/12, "year") + "."
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
