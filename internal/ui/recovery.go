package ui

import (
	"fmt"
	"runtime/debug"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-checkout/internal/notify"
)

// SafeModel wraps the root model with panic recovery so a broken screen
// does not take the terminal down mid-payment.
type SafeModel struct {
	model    tea.Model
	logger   *zap.Logger
	notifier notify.Notifier
	panics   atomic.Int64
}

// NewSafeModel wraps model. notifier, when set, receives an error
// notification for every recovered Init or Update panic.
func NewSafeModel(model tea.Model, logger *zap.Logger, notifier notify.Notifier) *SafeModel {
	return &SafeModel{
		model:    model,
		logger:   logger.Named("ui-recovery"),
		notifier: notifier,
	}
}

func (sm *SafeModel) Init() (cmd tea.Cmd) {
	defer sm.recoverFromPanic("Init", &cmd)
	return sm.model.Init()
}

func (sm *SafeModel) Update(msg tea.Msg) (model tea.Model, cmd tea.Cmd) {
	model = sm
	defer sm.recoverFromPanic("Update", &cmd)
	var next tea.Model
	next, cmd = sm.model.Update(msg)
	if next != nil {
		sm.model = next
	}
	return sm, cmd
}

func (sm *SafeModel) View() (view string) {
	defer func() {
		if r := recover(); r != nil {
			sm.panics.Add(1)
			sm.logger.Error("View panic recovered",
				zap.Any("panic", r),
				zap.String("stack", string(debug.Stack())))
			view = "Widget error: view crashed. Press Ctrl+C to exit."
		}
	}()
	return sm.model.View()
}

// Panics returns how many panics were recovered so far.
func (sm *SafeModel) Panics() int64 {
	return sm.panics.Load()
}

func (sm *SafeModel) recoverFromPanic(method string, cmd *tea.Cmd) {
	r := recover()
	if r == nil {
		return
	}
	sm.panics.Add(1)
	sm.logger.Error("UI method panic recovered",
		zap.String("method", method),
		zap.Any("panic", r),
		zap.String("stack", string(debug.Stack())))
	*cmd = nil
	if sm.notifier != nil {
		sm.notifier.Notify(notify.Error("Widget Error", fmt.Sprintf("%s failed, please retry", method)))
	}
}
