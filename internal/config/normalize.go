package config

import (
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.Paths.normalize(); err != nil {
		return err
	}
	c.Telegram.normalize()
	c.Downloads.normalize()
	c.Store.normalize()
	c.Workspace.normalize()
	c.Notifications.normalize()
	c.Logging.normalize()
	return nil
}

func (p *Paths) normalize() error {
	if p.WorkspaceRoot == "" {
		p.WorkspaceRoot = DefaultWorkspaceRoot
	}
	if p.LogDir == "" {
		p.LogDir = DefaultLogDir
	}

	expandedWorkspace, err := expandPath(p.WorkspaceRoot)
	if err != nil {
		return err
	}
	p.WorkspaceRoot = expandedWorkspace

	expandedLogDir, err := expandPath(p.LogDir)
	if err != nil {
		return err
	}
	p.LogDir = expandedLogDir
	return nil
}

func (t *Telegram) normalize() {
	t.BotToken = strings.TrimSpace(t.BotToken)
	if t.BotToken == "" {
		t.BotToken = strings.TrimSpace(os.Getenv("YTCOURIER_BOT_TOKEN"))
	}
	if t.BotToken == "" {
		t.BotToken = strings.TrimSpace(os.Getenv("BOT_TOKEN"))
	}
	if t.PollTimeout <= 0 {
		t.PollTimeout = DefaultPollTimeout
	}
}

func (d *Downloads) normalize() {
	if d.MaxFileSizeBytes <= 0 {
		d.MaxFileSizeBytes = DefaultMaxFileSizeBytes
	}
	if d.MaxConcurrentJobs < 0 {
		d.MaxConcurrentJobs = 0
	}
	if d.ProgressUpdateInterval <= 0 {
		d.ProgressUpdateInterval = DefaultProgressUpdateInterval
	}
	if d.ProgressPercentDelta <= 0 {
		d.ProgressPercentDelta = DefaultProgressPercentDelta
	}
	d.CookiesPath = strings.TrimSpace(d.CookiesPath)
}

func (s *Store) normalize() {
	if strings.TrimSpace(s.DSN) == "" {
		s.DSN = DefaultStoreDSN
	}
}

func (w *Workspace) normalize() {
	if w.SweepMaxAgeHours <= 0 {
		w.SweepMaxAgeHours = DefaultSweepMaxAgeHours
	}
}

func (n *Notifications) normalize() {
	n.NtfyTopic = strings.TrimSpace(n.NtfyTopic)
	if n.RequestTimeout <= 0 {
		n.RequestTimeout = DefaultNotificationTimeout
	}
}

func (l *Logging) normalize() {
	l.Format = strings.ToLower(strings.TrimSpace(l.Format))
	if l.Format == "" {
		l.Format = DefaultLogFormat
	}
	l.Level = strings.ToLower(strings.TrimSpace(l.Level))
	if l.Level == "" {
		l.Level = DefaultLogLevel
	}
}
