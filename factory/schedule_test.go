package factory

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payout-engine/payout"
)

const dinnerPool = `{
  "id": "dinner-pool",
  "name": "Dinner tip pool",
  "rule_kind": "job_weighted",
  "window": {"start_day": "monday", "end_day": "sunday", "start_time": "16:00", "end_time": "23:59"},
  "fund_triggers": {"tips_percent": 50},
  "contributor_roles": ["Bartender"],
  "contributor_percentage": 60,
  "receiver_roles": ["Server", " Host "],
  "receiver_role_percentages": {"Server": 30, "Host": 10}
}`

func TestParseSchedule(t *testing.T) {
	f := NewScheduleFactory()

	cfg, err := f.ParseSchedule([]byte(dinnerPool))
	require.NoError(t, err)

	assert.Equal(t, payout.ScheduleID("dinner-pool"), cfg.ID)
	assert.Equal(t, payout.RuleJobWeighted, cfg.RuleKind)
	assert.Equal(t, []string{"Server", "Host"}, cfg.ReceiverRoles)
	assert.Equal(t, 50.0, cfg.FundTriggers.TipsPercent)
	assert.Equal(t, 100.0, cfg.FundTriggers.GratuityPercent, "omitted trigger defaults to 100")
	require.NotNil(t, cfg.Window.StartDay)
	assert.Equal(t, time.Monday, *cfg.Window.StartDay)
	assert.Equal(t, "23:59", cfg.Window.EndTime)
}

func TestParseSchedule_PercentageMismatch(t *testing.T) {
	f := NewScheduleFactory()
	body := `{"id":"p","rule_kind":"custom","contributor_roles":["Bartender"],"contributor_percentage":50,
		"receiver_roles":["Server"],"receiver_role_percentages":{"Server":30}}`

	_, err := f.ParseSchedule([]byte(body))

	assert.ErrorIs(t, err, payout.ErrPercentageMismatch)
}

func TestParseSchedule_ValidatorErrors(t *testing.T) {
	f := NewScheduleFactory()
	cases := map[string]struct {
		body  string
		field string
	}{
		"missing id":       {`{"rule_kind":"equal"}`, "id"},
		"unknown rule":     {`{"id":"p","rule_kind":"weekly"}`, "rule_kind"},
		"trigger range":    {`{"id":"p","rule_kind":"equal","fund_triggers":{"tips_percent":101}}`, "fund_triggers.tips_percent"},
		"bad window time":  {`{"id":"p","rule_kind":"equal","window":{"start_time":"4pm"}}`, "window.start_time"},
		"contributor >100": {`{"id":"p","rule_kind":"equal","contributor_percentage":120}`, "contributor_percentage"},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.ParseSchedule([]byte(c.body))
			require.Error(t, err)
			assert.ErrorIs(t, err, payout.ErrInvalidConfig)
			var cfgErr *payout.ConfigError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, c.field, cfgErr.Field)
		})
	}
}

func TestParseSchedule_MalformedJSON(t *testing.T) {
	_, err := NewScheduleFactory().ParseSchedule([]byte(`{"id":`))
	assert.ErrorIs(t, err, payout.ErrInvalidConfig)
}

func TestToJSON_RoundTrip(t *testing.T) {
	f := NewScheduleFactory()
	cfg, err := f.ParseSchedule([]byte(dinnerPool))
	require.NoError(t, err)

	back, err := f.FromJSON(f.ToJSON(cfg))
	require.NoError(t, err)

	assert.Equal(t, cfg, back)
}
