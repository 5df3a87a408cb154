package publish

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/xela07ax/threatwatch/internal/engine"
	"go.uber.org/zap"
)

var ErrUnknownCommand = errors.New("unknown command")

// Controller: то, чем команды управляют в оркестраторе.
type Controller interface {
	RequestRange(hours int) error
	RequestRefresh()
}

type CommandKind string

const (
	CommandRange   CommandKind = "range"
	CommandRefresh CommandKind = "refresh"
)

type Command struct {
	Kind  CommandKind
	Hours int
}

// ParseCommand разбирает "range:<hours>" или "refresh". Окно больше maxHours отклоняется.
func ParseCommand(payload string, maxHours int) (Command, error) {
	payload = strings.TrimSpace(payload)

	if payload == string(CommandRefresh) {
		return Command{Kind: CommandRefresh}, nil
	}

	name, arg, ok := strings.Cut(payload, ":")
	if !ok || name != string(CommandRange) {
		return Command{}, fmt.Errorf("%w: %q", ErrUnknownCommand, payload)
	}

	hours, err := strconv.Atoi(arg)
	if err != nil || hours <= 0 || hours > maxHours {
		return Command{}, fmt.Errorf("%w: %q, max %d", engine.ErrInvalidRange, arg, maxHours)
	}
	return Command{Kind: CommandRange, Hours: hours}, nil
}

// Dispatch передает команду оркестратору.
func Dispatch(ctl Controller, cmd Command) error {
	switch cmd.Kind {
	case CommandRange:
		return ctl.RequestRange(cmd.Hours)
	case CommandRefresh:
		ctl.RequestRefresh()
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Kind)
	}
}

// ListenCommands: "живучая" подписка на командные каналы Redis.
// После каждого (пере)подключения запрашивает полный цикл: команды за время обрыва потеряны.
func ListenCommands(ctx context.Context, rdb *redis.Client, logger *zap.Logger, ctl Controller, maxHours int, channels ...string) {
	logger = logger.Named("commands")

	for {
		pubsub := rdb.Subscribe(ctx, channels...)

		// Проверка успешности подписки
		if _, err := pubsub.Receive(ctx); err != nil {
			pubsub.Close()
			if ctx.Err() != nil {
				return
			}
			logger.Error("failed to subscribe", zap.Strings("chan", channels), zap.Error(err))
			if !sleepCtx(ctx, 5*time.Second) {
				return
			}
			continue
		}

		logger.Info("listening for commands", zap.Strings("chan", channels))
		ctl.RequestRefresh()

		ch := pubsub.Channel()

	loop:
		for {
			select {
			case <-ctx.Done():
				pubsub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					break loop // Канал закрыт, идем на переподключение
				}

				cmd, err := ParseCommand(msg.Payload, maxHours)
				if err != nil {
					logger.Error("invalid command", zap.String("payload", msg.Payload), zap.Error(err))
					continue
				}
				if err := Dispatch(ctl, cmd); err != nil {
					logger.Error("command rejected", zap.String("payload", msg.Payload), zap.Error(err))
					continue
				}
				logger.Info("command accepted", zap.String("kind", string(cmd.Kind)), zap.Int("hours", cmd.Hours))
			}
		}

		pubsub.Close()
		if !sleepCtx(ctx, time.Second) {
			return
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
