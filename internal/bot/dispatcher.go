package bot

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/tunaylabs/streakkeeper/internal/config"
)

// retryBackoff is the fixed pause after a retryable failure before the
// loop runs again.
const retryBackoff = 5 * time.Second

// ErrInvariant marks a non-retryable programming or invariant failure.
// The loop stays alive on these too, but they are logged loudly instead
// of being treated as transient weather.
var ErrInvariant = errors.New("invariant violation")

// Dispatcher is the control loop: fetch a batch of updates above the
// persisted offset, route each one, evaluate the reminder, persist
// state, repeat. Transient failures back off and retry; only an
// interrupt terminates the loop.
type Dispatcher struct {
	store     *config.Store
	transport Transport
	router    *Router
	gate      *Gate
	reminder  *Reminder

	cfg   *config.Config
	state *config.State

	now     func() time.Time
	sleep   func(time.Duration)
	signals chan os.Signal

	protectDue chan struct{}
}

func NewDispatcher(store *config.Store, transport Transport, router *Router, gate *Gate, reminder *Reminder, cfg *config.Config, st *config.State) *Dispatcher {
	return &Dispatcher{
		store:      store,
		transport:  transport,
		router:     router,
		gate:       gate,
		reminder:   reminder,
		cfg:        cfg,
		state:      st,
		now:        time.Now,
		sleep:      time.Sleep,
		signals:    make(chan os.Signal, 1),
		protectDue: make(chan struct{}, 1),
	}
}

// ScheduleProtect marks an automatic protection run as due. The loop
// picks it up between batches, so config and state stay owned by one
// goroutine. Safe to call from a scheduler goroutine; repeated calls
// before the loop catches up collapse into one run.
func (d *Dispatcher) ScheduleProtect() {
	select {
	case d.protectDue <- struct{}{}:
	default:
	}
}

// Signals returns the channel an interrupt must be delivered on.
func (d *Dispatcher) Signals() chan os.Signal {
	return d.signals
}

// SetClock and SetSleep override the dispatcher's timing hooks (for
// testing).
func (d *Dispatcher) SetClock(now func() time.Time) { d.now = now }
func (d *Dispatcher) SetSleep(fn func(time.Duration)) { d.sleep = fn }

// Run polls until an interrupt arrives. Interrupts are honored between
// batches, never mid-action.
func (d *Dispatcher) Run() error {
	token := d.cfg.Bot.Token
	log.Printf("[dispatch] starting: timeout=%ds reminder=%02d:%02d",
		d.cfg.Bot.PollTimeoutSeconds, d.cfg.Bot.ReminderHour, d.cfg.Bot.ReminderMinute)
	log.Printf("[dispatch] allowed_chat_id=%s token=%s",
		orDash(d.cfg.Bot.AllowedChatID), maskToken(token))
	log.Printf("[dispatch] polling from offset=%d", d.state.LastUpdateID+1)

	for {
		select {
		case <-d.signals:
			log.Printf("[dispatch] interrupt received, stopping")
			return nil
		default:
		}

		if err := d.iterate(); err != nil {
			if errors.Is(err, ErrInvariant) {
				log.Printf("[dispatch] INVARIANT FAILURE (continuing): %v", err)
			} else {
				log.Printf("[dispatch] transient error: %v, retrying in %s", err, retryBackoff)
			}
			d.sleep(retryBackoff)
		}
	}
}

// iterate runs one fetch-route-remind-persist cycle. Any error aborts
// the cycle without persisting; in-memory offsets for updates already
// routed are kept so they are not reprocessed within this run, while
// the persisted offset still guards a crash-restart.
func (d *Dispatcher) iterate() error {
	updates, err := d.transport.GetUpdates(d.state.LastUpdateID+1, d.cfg.Bot.PollTimeoutSeconds)
	if err != nil {
		return err
	}

	prev := d.state.LastUpdateID
	for _, u := range updates {
		if u.Offset < prev {
			return fmt.Errorf("%w: offset %d after %d", ErrInvariant, u.Offset, prev)
		}
		prev = u.Offset
		if u.Offset > d.state.LastUpdateID {
			d.state.LastUpdateID = u.Offset
		}
		if err := d.handleUpdate(u); err != nil {
			return err
		}
	}

	if err := d.checkAutoProtect(); err != nil {
		return err
	}

	if err := d.checkReminder(); err != nil {
		return err
	}

	return d.store.SaveState(d.state)
}

// checkAutoProtect runs a scheduled protection if one came due since
// the last cycle. The long-poll timeout bounds how long a due run
// waits for the loop.
func (d *Dispatcher) checkAutoProtect() error {
	select {
	case <-d.protectDue:
	default:
		return nil
	}

	chatID := strings.TrimSpace(d.cfg.Bot.AllowedChatID)
	reply := d.router.DispatchAction(ActTick, d.cfg, d.state, chatID)
	log.Printf("[dispatch] auto-protect ran: %s", reply)
	if chatID == "" {
		return nil
	}
	return d.transport.SendMessage(chatID, reply, nil)
}

func (d *Dispatcher) handleUpdate(u Update) error {
	if u.ChatID == "" {
		return nil
	}
	if u.Callback != nil {
		return d.handleCallback(u)
	}

	cmd, args, ok := Normalize(u.Text)
	if !ok {
		return nil
	}

	allowed, justBound, err := d.gate.Authorize(d.cfg, u.ChatID, cmd)
	if err != nil {
		return err
	}
	if !allowed {
		if strings.TrimSpace(d.cfg.Bot.AllowedChatID) == "" {
			return d.transport.SendMessage(u.ChatID, "Send /start to pair this chat first.", nil)
		}
		return d.transport.SendMessage(u.ChatID, "Unauthorized chat.", nil)
	}

	reply := d.router.Dispatch(cmd, args, d.cfg, d.state, u.ChatID)
	if justBound {
		reply = fmt.Sprintf("This chat is now bound for bot control (chat_id=%s).\n\n%s", u.ChatID, reply)
	}

	var keyboard [][]Button
	if cmd == CmdPanel {
		keyboard = PanelKeyboard()
	}
	if err := d.transport.SendMessage(u.ChatID, reply, keyboard); err != nil {
		return err
	}
	log.Printf("[dispatch] command handled: cmd=%s chat_id=%s", cmd, u.ChatID)
	return nil
}

func (d *Dispatcher) handleCallback(u Update) error {
	allowed, _, err := d.gate.Authorize(d.cfg, u.ChatID, CmdUnknown)
	if err != nil {
		return err
	}
	if !allowed {
		return d.transport.AnswerCallback(u.Callback.ID, "Unauthorized chat.")
	}

	act, known := callbackActions[u.Callback.Data]
	if !known {
		return d.transport.AnswerCallback(u.Callback.ID, "Unknown action.")
	}

	if err := d.transport.AnswerCallback(u.Callback.ID, ""); err != nil {
		return err
	}

	reply := d.router.DispatchAction(act, d.cfg, d.state, u.ChatID)
	var keyboard [][]Button
	if act == ActRefresh {
		keyboard = PanelKeyboard()
	}
	if err := d.transport.SendMessage(u.ChatID, reply, keyboard); err != nil {
		return err
	}
	log.Printf("[dispatch] action handled: data=%s chat_id=%s", u.Callback.Data, u.ChatID)
	return nil
}

func (d *Dispatcher) checkReminder() error {
	now := d.now()
	if !d.reminder.IsDue(d.cfg, d.state, now) {
		return nil
	}
	chatID := strings.TrimSpace(d.cfg.Bot.AllowedChatID)
	if chatID == "" {
		return nil
	}

	text := d.cfg.Bot.ReminderText + "\nCommands: /status /tick /maintain"
	if err := d.transport.SendMessage(chatID, text, nil); err != nil {
		return err
	}
	d.state.LastReminderDate = now.Format(config.DateLayout)
	log.Printf("[dispatch] reminder sent to chat_id=%s", chatID)
	return nil
}

func maskToken(token string) string {
	if len(token) > 12 {
		return token[:6] + "..." + token[len(token)-4:]
	}
	if token == "" {
		return "-"
	}
	return "***"
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
