package service

import "time"

// SetClock replaces the time source of the message service.
func (s *MessageService) SetClock(now func() time.Time) { s.now = now }
