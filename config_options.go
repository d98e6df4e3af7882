package sessionvars

import "github.com/sessionvars/sessionvars/config"

// FromConfig translates a loaded config.Config into Session options.
func FromConfig(c config.Config) []Option {
	return []Option{
		WithConvertUnknownOID(c.ConvertUnknownOID),
		WithMaxOpenCursors(c.MaxOpenCursors),
	}
}

// ApplyConfig updates a running Session's reloadable settings from c — the
// counterpart to FromConfig used by a config.Watcher's onChange callback.
// Only convert_unknownoid is reloadable; max_open_cursors and log_level
// are fixed at construction.
func (s *Session) ApplyConfig(c config.Config) {
	s.SetConvertUnknownOID(c.ConvertUnknownOID)
}
