package flow

import (
	"context"
	"errors"
)

// EnterDigit handles typing into a code slot.
func (s *Session) EnterDigit(slot int, input string) error {
	if err := s.checkSlot(slot); err != nil {
		return err
	}
	if !isDigit(input) {
		s.code.set(slot, "")
		s.surface.SetSlot(slot, "", false)
		return nil
	}
	s.code.set(slot, input)
	s.surface.SetSlot(slot, input, true)
	if slot < CodeLength {
		s.focusSlot(slot + 1)
	}
	s.checkCompletion()
	return nil
}

// Backspace on an empty slot moves focus back and unmarks the previous slot.
func (s *Session) Backspace(slot int) error {
	if err := s.checkSlot(slot); err != nil {
		return err
	}
	if s.code.values[slot-1] != "" || slot == 1 {
		return nil
	}
	prev := slot - 1
	s.focusSlot(prev)
	s.code.unmark(prev)
	s.surface.SetSlot(prev, s.code.values[prev-1], false)
	return nil
}

// Paste fills slots from the first one, whatever slot received the paste.
func (s *Session) Paste(slot int, data string) error {
	if err := s.checkSlot(slot); err != nil {
		return err
	}
	var digits []string
	for _, r := range data {
		if r >= '0' && r <= '9' {
			digits = append(digits, string(r))
			if len(digits) == CodeLength {
				break
			}
		}
	}
	for i, d := range digits {
		s.code.set(i+1, d)
		s.surface.SetSlot(i+1, d, true)
	}
	if next := len(digits) + 1; next <= CodeLength {
		s.focusSlot(next)
	}
	s.checkCompletion()
	return nil
}

// Code returns the digits entered so far.
func (s *Session) Code() string {
	return s.code.String()
}

// FocusedSlot returns the slot holding input focus, 0 when none.
func (s *Session) FocusedSlot() int {
	return s.focus
}

// SubmitOTP verifies the entered code after the submission delay.
func (s *Session) SubmitOTP() error {
	if s.closed {
		return ErrClosed
	}
	if s.screen != ScreenOTP {
		return ErrWrongScreen
	}
	if s.verifying {
		return ErrSubmitPending
	}
	s.cancelAutoSubmit()
	if !s.code.complete() {
		s.surface.Notify(Notice{Kind: NoticeError, Text: "Please enter the complete 6-digit code"})
		return ErrIncompleteCode
	}

	entered := s.code.String()
	s.verifying = true
	s.surface.SetSubmitting(FormOTP, true)

	if s.verifier == nil {
		s.sched.After(submitDelay, func() {
			var err error
			if entered != s.cfg.DefaultOTP {
				err = ErrCodeMismatch
			}
			s.verificationDone(err)
		})
		return nil
	}

	email := ""
	if s.user != nil {
		email = s.user.Email
	}
	s.offLoop(func(ctx context.Context) error {
		return s.verifier.VerifyOTP(ctx, email, entered)
	}, s.verificationDone)
	return nil
}

func (s *Session) verificationDone(err error) {
	if s.closed {
		return
	}
	s.verifying = false
	s.surface.SetSubmitting(FormOTP, false)
	if s.screen != ScreenOTP {
		return
	}

	switch {
	case err == nil:
		s.metrics.ObserveOTP("match")
		s.logger.Info("verification code accepted")
		s.enterChat()
	case errors.Is(err, ErrCodeMismatch):
		s.metrics.ObserveOTP("mismatch")
		s.surface.Notify(Notice{Kind: NoticeError, Text: "Invalid verification code. Please try again."})
		s.clearCode()
		s.focusSlot(1)
	default:
		s.metrics.ObserveOTP("error")
		s.logger.Warn("verify otp failed", "error", err)
		s.surface.Notify(Notice{Kind: NoticeError, Text: "We couldn't verify your code. Please try again."})
	}
}

// ResendOTP restarts the countdown and clears the code.
func (s *Session) ResendOTP() error {
	if s.closed {
		return ErrClosed
	}
	if s.screen != ScreenOTP {
		return ErrWrongScreen
	}
	if s.verifier == nil {
		s.resent()
		return nil
	}

	email := ""
	if s.user != nil {
		email = s.user.Email
	}
	s.offLoop(func(ctx context.Context) error {
		return s.verifier.ResendOTP(ctx, email)
	}, func(err error) {
		if err != nil {
			s.logger.Warn("resend otp failed", "error", err)
			s.surface.Notify(Notice{Kind: NoticeError, Text: "We couldn't send a new code. Please try again."})
			return
		}
		if s.screen == ScreenOTP {
			s.resent()
		}
	})
	return nil
}

func (s *Session) resent() {
	s.countdown.start()
	s.clearCode()
	s.focusSlot(1)
	s.surface.Notify(Notice{Kind: NoticeInfo, Text: "Verification code sent successfully!"})
}

func (s *Session) checkSlot(slot int) error {
	if s.closed {
		return ErrClosed
	}
	if s.screen != ScreenOTP {
		return ErrWrongScreen
	}
	if slot < 1 || slot > CodeLength {
		return ErrInvalidSlot
	}
	return nil
}

func (s *Session) checkCompletion() {
	if !s.code.complete() {
		return
	}
	s.cancelAutoSubmit()
	s.autoSubmit = s.sched.After(autoSubmitDelay, func() {
		s.autoSubmit = 0
		if err := s.SubmitOTP(); err != nil {
			s.logger.Debug("auto submit skipped", "error", err)
		}
	})
}

func (s *Session) cancelAutoSubmit() {
	if s.autoSubmit != 0 {
		s.sched.Cancel(s.autoSubmit)
		s.autoSubmit = 0
	}
}

func (s *Session) clearCode() {
	s.code.reset()
	for slot := 1; slot <= CodeLength; slot++ {
		s.surface.SetSlot(slot, "", false)
	}
}

func (s *Session) focusSlot(slot int) {
	s.focus = slot
	s.surface.FocusSlot(slot)
}
