package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"

	"townbox/internal/domain"
	"townbox/internal/rules"
)

// Config models townbox.yml, the per-tenant settings.
type Config struct {
	Tenant struct {
		ID           string `yaml:"id"`
		Name         string `yaml:"name"`
		Jurisdiction string `yaml:"jurisdiction"`
		Timezone     string `yaml:"timezone"`
	} `yaml:"tenant"`
	Meetings struct {
		NoticeHours float64 `yaml:"notice_hours"`
	} `yaml:"meetings"`
	Voting struct {
		PassThreshold float64 `yaml:"pass_threshold"`
	} `yaml:"voting"`
	Newspaper            *Newspaper                             `yaml:"newspaper,omitempty"`
	PublicationOverrides map[domain.NoticeReason]rules.Override `yaml:"publication_overrides,omitempty"`
	Webhooks             []Webhook                              `yaml:"webhooks,omitempty"`
}

// Webhook receives audit events of the tenant. An empty Events list
// subscribes to every event type.
type Webhook struct {
	URL            string   `yaml:"url"`
	Events         []string `yaml:"events,omitempty"`
	Secret         string   `yaml:"secret,omitempty"`
	Enabled        *bool    `yaml:"enabled,omitempty"`
	TimeoutSeconds int      `yaml:"timeout_seconds,omitempty"`
}

type Newspaper struct {
	Name                string                    `yaml:"name"`
	PublicationDays     []string                  `yaml:"publication_days"`
	HolidayClosures     []string                  `yaml:"holiday_closures,omitempty"`
	SubmissionLeadDays  int                       `yaml:"submission_lead_days"`
	SubmissionDeadlines map[string]SubmissionTime `yaml:"submission_deadlines,omitempty"`
}

// SubmissionTime is a per-weekday cutoff, Time in 24h "HH:MM".
type SubmissionTime struct {
	DaysBefore int    `yaml:"days_before"`
	Time       string `yaml:"time"`
}

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "monday": time.Monday, "tuesday": time.Tuesday, "wednesday": time.Wednesday,
	"thursday": time.Thursday, "friday": time.Friday, "saturday": time.Saturday,
}

func parseWeekday(s string) (time.Weekday, error) {
	d, ok := weekdays[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, fmt.Errorf("unknown weekday %q", s)
	}
	return d, nil
}

func parseClock(s string) (int, int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid time %q, want HH:MM", s)
	}
	return t.Hour(), t.Minute(), nil
}

// Location returns the tenant's timezone, UTC when unset.
func (c *Config) Location() (*time.Location, error) {
	if c.Tenant.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Tenant.Timezone)
	if err != nil {
		return nil, fmt.Errorf("config.tenant.timezone: %w", err)
	}
	return loc, nil
}

// Schedule converts the newspaper section into a domain schedule. It returns
// nil when the tenant has no newspaper configured.
func (c *Config) Schedule() (*domain.NewspaperSchedule, error) {
	if c.Newspaper == nil {
		return nil, nil
	}
	loc, err := c.Location()
	if err != nil {
		return nil, err
	}
	n := c.Newspaper
	s := &domain.NewspaperSchedule{Name: n.Name, SubmissionLeadDays: n.SubmissionLeadDays}
	for _, d := range n.PublicationDays {
		wd, err := parseWeekday(d)
		if err != nil {
			return nil, fmt.Errorf("newspaper.publication_days: %w", err)
		}
		s.PublicationDays = append(s.PublicationDays, wd)
	}
	for _, h := range n.HolidayClosures {
		t, err := time.ParseInLocation(time.DateOnly, h, loc)
		if err != nil {
			return nil, fmt.Errorf("newspaper.holiday_closures: invalid date %q", h)
		}
		s.HolidayClosures = append(s.HolidayClosures, t)
	}
	if len(n.SubmissionDeadlines) > 0 {
		s.SubmissionDeadlines = make(map[time.Weekday]domain.SubmissionWindow, len(n.SubmissionDeadlines))
		for day, st := range n.SubmissionDeadlines {
			wd, err := parseWeekday(day)
			if err != nil {
				return nil, fmt.Errorf("newspaper.submission_deadlines: %w", err)
			}
			h, m, err := parseClock(st.Time)
			if err != nil {
				return nil, fmt.Errorf("newspaper.submission_deadlines.%s: %w", day, err)
			}
			s.SubmissionDeadlines[wd] = domain.SubmissionWindow{DaysBeforePublication: st.DaysBefore, Hour: h, Minute: m}
		}
	}
	return s, nil
}

// Rules resolves the tenant's jurisdiction in reg and applies its overrides.
func (c *Config) Rules(reg *rules.Registry) (rules.Set, error) {
	set, err := reg.Jurisdiction(c.Tenant.Jurisdiction)
	if err != nil {
		return rules.Set{}, err
	}
	if len(c.PublicationOverrides) == 0 {
		return set, nil
	}
	return set.WithOverrides(c.PublicationOverrides)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Tenant.ID == "" {
		return fmt.Errorf("config.tenant.id is required")
	}
	if c.Tenant.Jurisdiction == "" {
		return fmt.Errorf("config.tenant.jurisdiction is required")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.Meetings.NoticeHours < 0 {
		return fmt.Errorf("config.meetings.notice_hours must be >= 0")
	}
	if c.Voting.PassThreshold < 0 || c.Voting.PassThreshold >= 1 {
		return fmt.Errorf("config.voting.pass_threshold must be in [0, 1)")
	}
	if n := c.Newspaper; n != nil {
		if len(n.PublicationDays) == 0 {
			return fmt.Errorf("config.newspaper.publication_days is required")
		}
		if n.SubmissionLeadDays < 0 {
			return fmt.Errorf("config.newspaper.submission_lead_days must be >= 0")
		}
		if _, err := c.Schedule(); err != nil {
			return fmt.Errorf("config.%w", err)
		}
	}
	for reason := range c.PublicationOverrides {
		if reason == "" {
			return fmt.Errorf("config.publication_overrides has empty reason")
		}
	}
	for i, hook := range c.Webhooks {
		u := strings.TrimSpace(hook.URL)
		if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			return fmt.Errorf("config.webhooks[%d].url must be an http(s) URL", i)
		}
		if hook.TimeoutSeconds < 0 {
			return fmt.Errorf("config.webhooks[%d].timeout_seconds must be >= 0", i)
		}
	}
	return nil
}

// OverriddenReasons lists the overridden notice reasons, sorted.
func (c *Config) OverriddenReasons() []domain.NoticeReason {
	out := make([]domain.NoticeReason, 0, len(c.PublicationOverrides))
	for r := range c.PublicationOverrides {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "townbox.yml")
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; import with tb tenant config import --file <path>", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// GenerateDefault returns default config YAML.
func GenerateDefault(tenantID string) string {
	return fmt.Sprintf(defaultTemplate, tenantID)
}

// Default returns the default Config struct for a tenant.
func Default(tenantID string) *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(GenerateDefault(tenantID))).Decode(&cfg)
	cfg.Tenant.ID = tenantID
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

// ToYAML renders the config for storage or export.
func (c *Config) ToYAML() ([]byte, error) {
	return yaml.Marshal(c)
}

const defaultTemplate = `tenant:
  id: %s
  name: ""
  jurisdiction: IN
  timezone: America/Indiana/Indianapolis

meetings:
  notice_hours: 48

voting:
  pass_threshold: 0.5
`
