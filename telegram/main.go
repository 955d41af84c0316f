package telegram

import (
	"context"
	"os"
	"strconv"
	"strings"
	"sync"

	"pitchtrainer/database/postgres"
	"pitchtrainer/httpmiddleware"
	"pitchtrainer/logger"
	"pitchtrainer/modelapi/cartesiaapi"
	"pitchtrainer/modelapi/deepgramapi"
	"pitchtrainer/modelapi/geminiapi"
	"pitchtrainer/modelapi/openaiapi"
	"pitchtrainer/roles"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const roleCallbackPrefix = "start_role_"

// Score credited for a win when the grader is unavailable, so the victory is
// never lost to a model outage.
const fallbackScore = 70.0

const busyClientReply = "Извините, сейчас я немного занят... Кажется, у меня проблемы с памятью. Попробуйте ещё раз."

type TelegramConnectProps struct {
	Logger   *logger.LogMiddleware
	DB       *postgres.Database
	OpenAI   *openaiapi.OpenAI
	Gemini   *geminiapi.Gemini
	Deepgram *deepgramapi.DeepgramAPI
	Cartesia *cartesiaapi.Cartesia
}

type Telegram struct {
	logger   *logger.LogMiddleware
	bot      *tgbotapi.BotAPI
	db       *postgres.Database
	openai   *openaiapi.OpenAI
	gemini   *geminiapi.Gemini
	deepgram *deepgramapi.DeepgramAPI
	cartesia *cartesiaapi.Cartesia
	sessions *sessionStore

	namesMu sync.Mutex
	names   map[string]string
}

func Connect(ctx context.Context, args TelegramConnectProps) *Telegram {
	tracer := otel.Tracer("telegram/Connect")
	ctx, span := tracer.Start(ctx, "Connect")
	defer span.End()

	botToken := os.Getenv("TELEGRAM_BOT_TOKEN")
	if botToken == "" {
		args.Logger.Logger(ctx).Fatal("TELEGRAM_BOT_TOKEN environment variable not set")
	}

	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		args.Logger.Logger(ctx).Fatal("Failed to create Telegram bot", zap.Error(err))
	}

	debug := os.Getenv("TELEGRAM_DEBUG") == "true"
	bot.Debug = debug

	span.SetAttributes(
		attribute.String("bot.username", bot.Self.UserName),
		attribute.Bool("bot.debug", debug),
	)

	args.Logger.Logger(ctx).Info("Telegram bot connected successfully",
		zap.String("username", bot.Self.UserName),
		zap.Bool("debug", debug),
	)

	return &Telegram{
		logger:   args.Logger,
		bot:      bot,
		db:       args.DB,
		openai:   args.OpenAI,
		gemini:   args.Gemini,
		deepgram: args.Deepgram,
		cartesia: args.Cartesia,
		sessions: newSessionStore(),
		names:    map[string]string{},
	}
}

func (t *Telegram) Listen(ctx context.Context) {
	tracer := otel.Tracer("telegram/Listen")
	ctx, span := tracer.Start(ctx, "Listen")
	defer span.End()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := t.bot.GetUpdatesChan(u)

	t.logger.Logger(ctx).Info("Starting Telegram bot message listener")

	for {
		select {
		case <-ctx.Done():
			t.logger.Logger(ctx).Info("Shutting down Telegram bot listener")
			return
		case update := <-updates:
			t.handleUpdate(ctx, update)
		}
	}
}

func (t *Telegram) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	tracer := otel.Tracer("telegram/handleUpdate")
	ctx, span := tracer.Start(ctx, "handleUpdate")
	defer span.End()

	switch {
	case update.Message != nil:
		t.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		t.handleCallbackQuery(ctx, update.CallbackQuery)
	}
}

func (t *Telegram) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	tracer := otel.Tracer("telegram/handleMessage")
	ctx, span := tracer.Start(ctx, "handleMessage")
	defer span.End()

	if message.From == nil {
		return
	}

	user := message.From
	t.rememberName(user)

	span.SetAttributes(
		attribute.Int64("user.id", user.ID),
		attribute.String("user.username", user.UserName),
	)

	t.logger.Logger(ctx).Info("Received message",
		zap.Int64("user_id", user.ID),
		zap.String("username", user.UserName),
	)

	if message.IsCommand() {
		t.handleCommand(ctx, message)
		return
	}

	pitchText := message.Text
	if message.Voice != nil {
		transcribed, err := t.transcribeVoice(ctx, message.Voice.FileID)
		if err != nil {
			t.logger.Logger(ctx).Error("Failed to transcribe voice note", zap.Error(err))
			t.sendText(ctx, message.Chat.ID, "Не удалось распознать голосовое сообщение. Попробуй написать текстом.")
			return
		}
		pitchText = transcribed
	}

	if pitchText == "" {
		return
	}

	t.handleDialogMessage(ctx, message.Chat.ID, user, pitchText)
}

func (t *Telegram) handleCommand(ctx context.Context, message *tgbotapi.Message) {
	tracer := otel.Tracer("telegram/handleCommand")
	ctx, span := tracer.Start(ctx, "handleCommand")
	defer span.End()

	span.SetAttributes(attribute.String("command", message.Command()))

	switch message.Command() {
	case "start":
		t.handleStart(ctx, message.Chat.ID)
	case "top":
		t.handleTop(ctx, message.Chat.ID)
	case "progress":
		t.handleProgress(ctx, message.Chat.ID, message.From)
	case "voice":
		enabled := t.sessions.toggleVoice(message.Chat.ID)
		if enabled {
			t.sendText(ctx, message.Chat.ID, "🔊 Клиент теперь отвечает голосом.")
		} else {
			t.sendText(ctx, message.Chat.ID, "💬 Клиент снова отвечает текстом.")
		}
	case "stop":
		t.sessions.reset(message.Chat.ID)
		t.sendText(ctx, message.Chat.ID, "Диалог прерван. Начать заново: /start")
	default:
		t.sendText(ctx, message.Chat.ID, "Извините, я вас не понял. Используйте /start для начала.")
	}
}

func (t *Telegram) handleStart(ctx context.Context, chatID int64) {
	t.sessions.beginSelection(chatID)

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, role := range roles.All() {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(roleKeyboardLabel(role), roleCallbackPrefix+role.Key),
		))
	}

	msg := tgbotapi.NewMessage(chatID,
		"👋 Привет! Я твой тренажёр «Вредный Клиент».\n"+
			"Выбери, с кем хочешь потренироваться сегодня:")
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)

	if _, err := t.bot.Send(msg); err != nil {
		t.logger.Logger(ctx).Error("Failed to send role keyboard", zap.Error(err))
	}
}

func (t *Telegram) handleCallbackQuery(ctx context.Context, query *tgbotapi.CallbackQuery) {
	tracer := otel.Tracer("telegram/handleCallbackQuery")
	ctx, span := tracer.Start(ctx, "handleCallbackQuery")
	defer span.End()

	if query.From == nil {
		return
	}
	t.rememberName(query.From)

	span.SetAttributes(
		attribute.Int64("user.id", query.From.ID),
		attribute.String("callback.data", query.Data),
	)

	callback := tgbotapi.NewCallback(query.ID, "")
	if _, err := t.bot.Request(callback); err != nil {
		t.logger.Logger(ctx).Warn("Failed to acknowledge callback", zap.Error(err))
	}

	if query.Message == nil || !strings.HasPrefix(query.Data, roleCallbackPrefix) {
		return
	}

	roleKey := strings.TrimPrefix(query.Data, roleCallbackPrefix)
	role, ok := roles.ByKey(roleKey)
	if !ok {
		t.logger.Logger(ctx).Warn("Unknown role in callback", zap.String("role_key", roleKey))
		return
	}

	chatID := query.Message.Chat.ID

	opening, err := t.openai.GetClientReply(ctx, role, nil,
		"Начни диалог первой репликой клиента: поздоровайся коротко и сразу покажи своё отношение.")
	if err != nil {
		t.logger.Logger(ctx).Error("Failed to get opening client line", zap.Error(err))
		t.sendText(ctx, chatID, busyClientReply)
		return
	}

	t.sessions.startDialog(chatID, roleKey, opening)

	edit := tgbotapi.NewEditMessageText(chatID, query.Message.MessageID,
		"*** Ты выбрал: "+role.Name+" ***\n\n"+
			"Твоя цель: убедить клиента записаться на массаж.\n"+
			"Закончить диалог: /stop\n\n"+
			"💬 Клиент: "+opening)
	if _, err := t.bot.Send(edit); err != nil {
		t.logger.Logger(ctx).Error("Failed to edit role selection message", zap.Error(err))
	}
}

func (t *Telegram) handleDialogMessage(ctx context.Context, chatID int64, user *tgbotapi.User, text string) {
	tracer := otel.Tracer("telegram/handleDialogMessage")
	ctx, span := tracer.Start(ctx, "handleDialogMessage")
	defer span.End()

	sess := t.sessions.snapshot(chatID)
	if sess.state != stateInDialog {
		t.sendText(ctx, chatID, "Извините, я вас не понял. Используйте /start для начала.")
		return
	}

	role, ok := roles.ByKey(sess.roleKey)
	if !ok {
		t.sessions.reset(chatID)
		t.sendText(ctx, chatID, "Что-то пошло не так. Начни заново: /start")
		return
	}

	span.SetAttributes(
		attribute.String("role.key", role.Key),
		attribute.Int("dialog.turns", sess.messageCount),
	)

	reply, err := t.openai.GetClientReply(ctx, role, sess.dialog, text)
	if err != nil {
		t.logger.Logger(ctx).Error("Failed to generate client reply", zap.Error(err))
		t.sendText(ctx, chatID, busyClientReply)
		return
	}

	t.sessions.appendTurn(chatID, text, reply)

	if roles.IsWin(reply) {
		t.handleVictory(ctx, chatID, user, role, reply)
		return
	}

	if sess.voiceReplies && t.cartesia != nil {
		audio, err := t.cartesia.GenerateSpeech(ctx, reply)
		if err != nil {
			t.logger.Logger(ctx).Warn("Failed to synthesize voice reply", zap.Error(err))
		} else {
			voice := tgbotapi.NewVoice(chatID, tgbotapi.FileBytes{Name: "client.mp3", Bytes: audio})
			if _, err := t.bot.Send(voice); err != nil {
				t.logger.Logger(ctx).Warn("Failed to send voice reply, falling back to text", zap.Error(err))
			} else {
				return
			}
		}
	}

	t.sendText(ctx, chatID, "💬 Клиент: "+reply)
}

func (t *Telegram) handleVictory(ctx context.Context, chatID int64, user *tgbotapi.User, role roles.Role, finalReply string) {
	tracer := otel.Tracer("telegram/handleVictory")
	ctx, span := tracer.Start(ctx, "handleVictory")
	defer span.End()

	span.SetAttributes(attribute.String("role.key", role.Key))

	dialog := t.sessions.snapshot(chatID).dialog

	grade, err := t.gemini.GradePitch(ctx, role.Name, dialog)
	if err != nil {
		t.logger.Logger(ctx).Error("Grading failed, using fallback score", zap.Error(err))
		span.RecordError(err)
		grade = &geminiapi.PitchGrade{
			Score:   fallbackScore,
			Summary: "Оценка временно недоступна, засчитан базовый балл.",
		}
	}

	userID := strconv.FormatInt(user.ID, 10)
	progress, err := t.db.RecordRoleCompletion(ctx, userID, role.Key, grade.Score)
	if err != nil {
		t.logger.Logger(ctx).Error("Failed to record role completion", zap.Error(err))
		t.sendText(ctx, chatID, "🥳 ПОБЕДА!\n\n💬 Клиент: "+finalReply+
			"\n\nНе удалось сохранить результат, попробуй позже.")
		t.sessions.reset(chatID)
		return
	}

	t.sessions.reset(chatID)
	t.sendText(ctx, chatID, "💬 Клиент: "+finalReply+"\n\n"+formatVictory(role, grade, progress))
}

func (t *Telegram) handleTop(ctx context.Context, chatID int64) {
	leaderboard, err := t.db.GetLeaderboard(ctx, 10)
	if err != nil {
		t.logger.Logger(ctx).Error("Failed to load leaderboard", zap.Error(err))
		t.sendText(ctx, chatID, "Не удалось загрузить таблицу лидеров. Попробуй позже.")
		return
	}
	t.sendText(ctx, chatID, formatLeaderboard(leaderboard, t.knownNames()))
}

func (t *Telegram) handleProgress(ctx context.Context, chatID int64, user *tgbotapi.User) {
	userID := strconv.FormatInt(user.ID, 10)
	progress, found, err := t.db.GetUserProgress(ctx, userID)
	if err != nil {
		t.logger.Logger(ctx).Error("Failed to load user progress", zap.Error(err))
		t.sendText(ctx, chatID, "Не удалось загрузить прогресс. Попробуй позже.")
		return
	}
	t.sendText(ctx, chatID, formatProgress(progress, found))
}

func (t *Telegram) transcribeVoice(ctx context.Context, fileID string) (string, error) {
	url, err := t.bot.GetFileDirectURL(fileID)
	if err != nil {
		return "", err
	}

	audio, err := httpmiddleware.HttpRequest(httpmiddleware.HttpRequestStruct{
		Method: "GET",
		Url:    url,
	})
	if err != nil {
		return "", err
	}

	return t.deepgram.Transcribe(ctx, audio)
}

func (t *Telegram) sendText(ctx context.Context, chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := t.bot.Send(msg); err != nil {
		t.logger.Logger(ctx).Error("Failed to send message", zap.Error(err))
	}
}

func (t *Telegram) rememberName(user *tgbotapi.User) {
	name := strings.TrimSpace(user.FirstName + " " + user.LastName)
	if name == "" {
		name = user.UserName
	}
	if name == "" {
		return
	}
	t.namesMu.Lock()
	t.names[strconv.FormatInt(user.ID, 10)] = name
	t.namesMu.Unlock()
}

func (t *Telegram) knownNames() map[string]string {
	t.namesMu.Lock()
	defer t.namesMu.Unlock()
	names := make(map[string]string, len(t.names))
	for id, name := range t.names {
		names[id] = name
	}
	return names
}
