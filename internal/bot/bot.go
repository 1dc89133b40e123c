// Package bot is the Telegram front end. It long-polls for updates,
// recognises TikTok links, and hands acquisition work to a dedicated
// worker so the update loop never blocks on network or transcoding.
// Acquisitions run one at a time; the pipeline's shared workspace is
// not safe for overlapping requests.
package bot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"

	"tikdrop/internal/lookup"
	"tikdrop/internal/observe"
	"tikdrop/internal/pipeline"
	"tikdrop/internal/workspace"
	"tikdrop/pkg/logger"
	"tikdrop/pkg/worker"
)

var log = logger.Get("Bot")

// Telegram caps bot uploads at 50MB and albums at ten photos.
const (
	maxVideoBytes  = 50 << 20
	maxAlbumPhotos = 10
)

const (
	actionUploadVideo = "upload_video"
	actionUploadPhoto = "upload_photo"
	actionUploadVoice = "upload_voice"
)

const (
	msgWelcome = "🎬 *RS TikTok Downloader*\n\n" +
		"Bot para descargar videos e imágenes de TikTok.\n\n" +
		"Envía un link de TikTok para comenzar."
	msgHelp = "📖 *RS TikTok Downloader - Guía de Uso*\n\n" +
		"*Para descargar contenido:*\n" +
		"Solo envía el link de TikTok:\n" +
		"`https://www.tiktok.com/@usuario/video/123456`\n" +
		"o\n" +
		"`https://vt.tiktok.com/XXXXX/`\n\n" +
		"*¿Qué recibirás?*\n" +
		"• Videos: Video + Audio MP3\n" +
		"• Slideshows: Imágenes + Audio MP3\n\n" +
		"*Nota:* Los videos privados no se pueden descargar."
	msgDownloading   = "⏳ *Descargando...*\nEsto puede tomar unos segundos."
	msgExtracting    = "🎵 *Extrayendo audio...*\nEsto puede tomar unos segundos."
	msgSendLink      = "👋 Envíame un link de TikTok para descargar el contenido.\nUsa /help para más información."
	msgAskAudioLink  = "🎵 Envíame el link de TikTok para extraer el audio:"
	msgNotTikTok     = "❌ El link no parece ser de TikTok. Intenta de nuevo con /audio"
	msgBadAudioArg   = "❌ El link proporcionado no parece ser de TikTok.\nEjemplo: `/audio https://vt.tiktok.com/XXXXX/`"
	msgBusy          = "⏳ Hay otra descarga en curso. Intenta de nuevo en unos segundos."
	msgVideoTooLarge = "❌ El video es demasiado grande (>50MB).\nTelegram tiene un límite de 50MB para bots."
)

type Config struct {
	Token                string `yaml:"token" env:"BOT_TOKEN" env-required:"true" validate:"required"`
	UpdateTimeoutSeconds int    `yaml:"update_timeout_seconds" env:"BOT_UPDATE_TIMEOUT_SECONDS" env-default:"30"`
}

type acquirer interface {
	AcquireVideo(ctx context.Context, sourceURL string) pipeline.Result
	AcquireAudio(ctx context.Context, sourceURL string) pipeline.Result
}

// telegramSender is the outbound surface of the Telegram API used for
// delivery and status updates; satisfied by *tgbotapi.BotAPI.
type telegramSender interface {
	Send(chattable tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(chattable tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	SendMediaGroup(group tgbotapi.MediaGroupConfig) ([]tgbotapi.Message, error)
}

type Bot struct {
	config     Config
	api        *tgbotapi.BotAPI
	sender     telegramSender
	acquirer   acquirer
	workspace  *workspace.Workspace
	metrics    *observe.Metrics
	dispatcher *worker.Dispatcher

	// Chats that issued a bare /audio and owe us a link next.
	pendingAudioMu sync.Mutex
	pendingAudio   map[int64]bool
}

func New(config Config, acquirer acquirer, ws *workspace.Workspace, metrics *observe.Metrics) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(config.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to authorise with Telegram: %w", err)
	}

	return &Bot{
		config:       config,
		api:          api,
		sender:       api,
		acquirer:     acquirer,
		workspace:    ws,
		metrics:      metrics,
		dispatcher:   worker.NewDispatcher("acquire", 1, 1),
		pendingAudio: make(map[int64]bool),
	}, nil
}

// Run starts the acquisition worker and consumes Telegram updates
// until the context is cancelled.
func (bot *Bot) Run(ctx context.Context) error {
	log.Emit(logger.SUCCESS, "Authorised as @%s\n", bot.api.Self.UserName)

	wg := &sync.WaitGroup{}
	wg.Add(1)
	go func() {
		defer wg.Done()
		bot.dispatcher.Run(ctx)
	}()

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = bot.config.UpdateTimeoutSeconds
	updates := bot.api.GetUpdatesChan(updateConfig)

	for {
		select {
		case <-ctx.Done():
			bot.api.StopReceivingUpdates()
			wg.Wait()
			return nil
		case update := <-updates:
			if update.Message == nil || update.Message.Text == "" {
				continue
			}

			bot.handleMessage(ctx, update.Message)
		}
	}
}

func (bot *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID

	if message.IsCommand() {
		bot.handleCommand(ctx, message)
		return
	}

	if bot.takePendingAudio(chatID) {
		if containsTikTokURL(message.Text) {
			bot.enqueueAudio(ctx, chatID, extractTikTokURL(message.Text))
		} else {
			bot.sendMarkdown(chatID, msgNotTikTok)
		}
		return
	}

	if !containsTikTokURL(message.Text) {
		bot.sendMarkdown(chatID, msgSendLink)
		return
	}

	bot.enqueueVideo(ctx, chatID, extractTikTokURL(message.Text))
}

func (bot *Bot) handleCommand(ctx context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID

	switch message.Command() {
	case "start":
		bot.sendMarkdown(chatID, msgWelcome)
	case "help":
		bot.sendMarkdown(chatID, msgHelp)
	case "audio":
		arg := strings.TrimSpace(message.CommandArguments())
		switch {
		case arg == "":
			bot.setPendingAudio(chatID)
			bot.sendMarkdown(chatID, msgAskAudioLink)
		case containsTikTokURL(arg):
			bot.enqueueAudio(ctx, chatID, extractTikTokURL(arg))
		default:
			bot.sendMarkdown(chatID, msgBadAudioArg)
		}
	}
}

// enqueueVideo posts a status message and hands the acquisition to
// the worker. The queue holds a single pending request; anything
// beyond that is turned away immediately.
func (bot *Bot) enqueueVideo(ctx context.Context, chatID int64, sourceURL string) {
	statusID := bot.sendMarkdown(chatID, msgDownloading)
	submitted := bot.dispatcher.Submit(func() {
		bot.processRequest(ctx, chatID, statusID, sourceURL, lookup.KindVideo)
	})

	if !submitted {
		bot.editMessage(chatID, statusID, msgBusy)
	}
}

func (bot *Bot) enqueueAudio(ctx context.Context, chatID int64, sourceURL string) {
	statusID := bot.sendMarkdown(chatID, msgExtracting)
	submitted := bot.dispatcher.Submit(func() {
		bot.processRequest(ctx, chatID, statusID, sourceURL, lookup.KindAudio)
	})

	if !submitted {
		bot.editMessage(chatID, statusID, msgBusy)
	}
}

// processRequest runs on the acquisition worker.
func (bot *Bot) processRequest(ctx context.Context, chatID int64, statusID int, sourceURL string, intent lookup.Kind) {
	requestID := uuid.New()
	log.Emit(logger.INFO, "[%s] Processing %s request for %s\n", requestID, intent, sourceURL)

	var result pipeline.Result
	start := time.Now()
	if intent == lookup.KindAudio {
		bot.sendChatAction(chatID, actionUploadVoice)
		result = bot.acquirer.AcquireAudio(ctx, sourceURL)
	} else {
		bot.sendChatAction(chatID, actionUploadVideo)
		result = bot.acquirer.AcquireVideo(ctx, sourceURL)
	}
	bot.metrics.RecordAcquisition(string(result.Kind), result.Success, time.Since(start).Seconds())

	defer bot.clearWorkspace()

	if !result.Success {
		log.Emit(logger.WARNING, "[%s] Acquisition failed: %s\n", requestID, result.Error)
		bot.editMessage(chatID, statusID, fmt.Sprintf("❌ *Error al descargar:*\n%s", result.Error))
		return
	}

	if err := bot.deliver(chatID, statusID, result); err != nil {
		log.Emit(logger.ERROR, "[%s] Delivery failed: %s\n", requestID, err.Error())
		bot.editMessage(chatID, statusID, fmt.Sprintf("❌ *Error al enviar:* %s", err.Error()))
		return
	}

	log.Emit(logger.SUCCESS, "[%s] Sent %s (%d files) to chat %d\n", requestID, result.Kind, len(result.Files), chatID)
}

// deliver sends the acquired files, branching purely on the result's
// content kind and file extensions. The status message is deleted only
// once the media actually went out; when delivery is declined (e.g. the
// video exceeds the upload cap) the status message is left in place
// carrying the explanation.
func (bot *Bot) deliver(chatID int64, statusID int, result pipeline.Result) error {
	switch result.Kind {
	case lookup.KindVideo:
		delivered, err := bot.deliverVideo(chatID, statusID, result)
		if err != nil {
			return err
		}
		if !delivered {
			return nil
		}
	case lookup.KindSlideshow:
		if err := bot.deliverSlideshow(chatID, result); err != nil {
			return err
		}
	case lookup.KindAudio:
		audio := tgbotapi.NewAudio(chatID, tgbotapi.FilePath(result.Files[0]))
		audio.Title = result.Title
		audio.Caption = fmt.Sprintf("🎵 %s", result.Title)
		if _, err := bot.sender.Send(audio); err != nil {
			return err
		}
	}

	bot.deleteMessage(chatID, statusID)
	return nil
}

// deliverVideo uploads the video and its companion audio track. The
// boolean reports whether anything was sent: an oversized video turns
// the status message into the refusal notice and declines delivery.
func (bot *Bot) deliverVideo(chatID int64, statusID int, result pipeline.Result) (bool, error) {
	videoPath := result.Files[0]
	if info, err := os.Stat(videoPath); err == nil && info.Size() > maxVideoBytes {
		bot.editMessage(chatID, statusID, msgVideoTooLarge)
		return false, nil
	}

	bot.sendChatAction(chatID, actionUploadVideo)
	video := tgbotapi.NewVideo(chatID, tgbotapi.FilePath(videoPath))
	video.Caption = fmt.Sprintf("📹 %s", result.Title)
	video.SupportsStreaming = true
	if _, err := bot.sender.Send(video); err != nil {
		return false, err
	}

	if audioFiles := filesWithExt(result.Files, ".mp3", ".m4a", ".opus"); len(audioFiles) > 0 {
		bot.sendChatAction(chatID, actionUploadVoice)
		audio := tgbotapi.NewAudio(chatID, tgbotapi.FilePath(audioFiles[0]))
		audio.Title = fmt.Sprintf("Audio - %s", result.Title)
		audio.Caption = "🎵 Audio del video"
		if _, err := bot.sender.Send(audio); err != nil {
			return false, err
		}
	}

	return true, nil
}

func (bot *Bot) deliverSlideshow(chatID int64, result pipeline.Result) error {
	imageFiles := filesWithExt(result.Files, ".jpg", ".jpeg", ".png", ".webp")
	if len(imageFiles) > maxAlbumPhotos {
		imageFiles = imageFiles[:maxAlbumPhotos]
	}

	if len(imageFiles) > 0 {
		bot.sendChatAction(chatID, actionUploadPhoto)

		media := make([]interface{}, 0, len(imageFiles))
		for i, imagePath := range imageFiles {
			photo := tgbotapi.NewInputMediaPhoto(tgbotapi.FilePath(imagePath))
			if i == 0 {
				photo.Caption = fmt.Sprintf("🖼️ %s", result.Title)
			}
			media = append(media, photo)
		}

		if _, err := bot.sender.SendMediaGroup(tgbotapi.NewMediaGroup(chatID, media)); err != nil {
			return err
		}
	}

	if audioFiles := filesWithExt(result.Files, ".mp3", ".m4a", ".opus"); len(audioFiles) > 0 {
		bot.sendChatAction(chatID, actionUploadVoice)
		audio := tgbotapi.NewAudio(chatID, tgbotapi.FilePath(audioFiles[0]))
		audio.Title = fmt.Sprintf("Audio - %s", result.Title)
		audio.Caption = "🎵 Audio del slideshow"
		if _, err := bot.sender.Send(audio); err != nil {
			return err
		}
	}

	return nil
}

func (bot *Bot) sendMarkdown(chatID int64, text string) int {
	message := tgbotapi.NewMessage(chatID, text)
	message.ParseMode = tgbotapi.ModeMarkdown

	sent, err := bot.sender.Send(message)
	if err != nil {
		log.Emit(logger.WARNING, "Failed to send message to chat %d: %s\n", chatID, err.Error())
		return 0
	}

	return sent.MessageID
}

func (bot *Bot) editMessage(chatID int64, messageID int, text string) {
	if messageID == 0 {
		return
	}

	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.ParseMode = tgbotapi.ModeMarkdown
	if _, err := bot.sender.Send(edit); err != nil {
		log.Emit(logger.WARNING, "Failed to edit message %d in chat %d: %s\n", messageID, chatID, err.Error())
	}
}

func (bot *Bot) deleteMessage(chatID int64, messageID int) {
	if messageID == 0 {
		return
	}

	if _, err := bot.sender.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		log.Emit(logger.WARNING, "Failed to delete message %d in chat %d: %s\n", messageID, chatID, err.Error())
	}
}

func (bot *Bot) sendChatAction(chatID int64, action string) {
	if _, err := bot.sender.Request(tgbotapi.NewChatAction(chatID, action)); err != nil {
		log.Emit(logger.DEBUG, "Failed to send chat action to chat %d: %s\n", chatID, err.Error())
	}
}

func (bot *Bot) setPendingAudio(chatID int64) {
	bot.pendingAudioMu.Lock()
	defer bot.pendingAudioMu.Unlock()

	bot.pendingAudio[chatID] = true
}

// takePendingAudio consumes the one-shot "waiting for an audio link"
// marker for the chat, reporting whether it was set.
func (bot *Bot) takePendingAudio(chatID int64) bool {
	bot.pendingAudioMu.Lock()
	defer bot.pendingAudioMu.Unlock()

	pending := bot.pendingAudio[chatID]
	delete(bot.pendingAudio, chatID)
	return pending
}

func (bot *Bot) clearWorkspace() {
	if err := bot.workspace.Clear(); err != nil {
		log.Emit(logger.WARNING, "Workspace clear failed: %s\n", err.Error())
	}
}

func filesWithExt(files []string, exts ...string) []string {
	matched := make([]string, 0, len(files))
	for _, file := range files {
		ext := strings.ToLower(filepath.Ext(file))
		for _, candidate := range exts {
			if ext == candidate {
				matched = append(matched, file)
				break
			}
		}
	}

	return matched
}
