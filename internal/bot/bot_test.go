package bot

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strings"
	"sync"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riverfjs/slackify-go"
	"github.com/riverfjs/slackify-go/internal/slackapi"
)

type fakeChat struct {
	mu sync.Mutex

	isMember      bool
	threadTextErr error
	modalErr      error
	postErr       error
	respondErr    error
	files         map[string]slackapi.File
	downloads     map[string][]byte

	calls   []string
	posts   map[string][]slackify.Block
	texts   map[string][]string
	replies []slackapi.Reply
	uploads []slackapi.Upload
	views   []slack.ModalViewRequest
}

func newFakeChat() *fakeChat {
	return &fakeChat{
		isMember: true,
		posts:    map[string][]slackify.Block{},
		texts:    map[string][]string{},
	}
}

func (f *fakeChat) record(call string) {
	f.calls = append(f.calls, call)
}

func (f *fakeChat) OpenDM(_ context.Context, userID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("open:" + userID)
	return "D" + userID, nil
}

func (f *fakeChat) PostBlocks(_ context.Context, channelID string, blocks []slackify.Block, threadID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("post:" + channelID + "@" + threadID)
	if f.postErr != nil {
		return f.postErr
	}
	f.posts[channelID] = append(f.posts[channelID], blocks...)
	return nil
}

func (f *fakeChat) ChannelInfo(_ context.Context, channelID string) (slackify.ChannelInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("info:" + channelID)
	return slackify.ChannelInfo{ID: channelID, IsMember: f.isMember}, nil
}

func (f *fakeChat) JoinChannel(_ context.Context, channelID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("join:" + channelID)
	f.isMember = true
	return nil
}

func (f *fakeChat) PostText(_ context.Context, channelID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("text:" + channelID)
	f.texts[channelID] = append(f.texts[channelID], text)
	return nil
}

func (f *fakeChat) PostThreadText(_ context.Context, channelID, threadID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("thread:" + channelID + "@" + threadID)
	if f.threadTextErr != nil {
		return f.threadTextErr
	}
	f.texts[channelID] = append(f.texts[channelID], text)
	return nil
}

func (f *fakeChat) AddReaction(_ context.Context, _, _, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("+" + name)
	return nil
}

func (f *fakeChat) RemoveReaction(_ context.Context, _, _, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("-" + name)
	return nil
}

func (f *fakeChat) BotUserID(context.Context) (string, error) {
	return "UBOT", nil
}

func (f *fakeChat) OpenModal(_ context.Context, _ string, view slack.ModalViewRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("modal:" + view.CallbackID)
	if f.modalErr != nil {
		return f.modalErr
	}
	f.views = append(f.views, view)
	return nil
}

func (f *fakeChat) UploadFile(_ context.Context, u slackapi.Upload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("upload:" + u.ChannelID)
	f.uploads = append(f.uploads, u)
	return nil
}

func (f *fakeChat) Respond(_ context.Context, _ string, r slackapi.Reply) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("respond")
	if f.respondErr != nil {
		return f.respondErr
	}
	f.replies = append(f.replies, r)
	return nil
}

func (f *fakeChat) FileInfo(_ context.Context, fileID string) (slackapi.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("file:" + fileID)
	file, ok := f.files[fileID]
	if !ok {
		return slackapi.File{}, errors.New("file_not_found")
	}
	return file, nil
}

func (f *fakeChat) DownloadFile(_ context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("download:" + url)
	data, ok := f.downloads[url]
	if !ok {
		return nil, errors.New("403 Forbidden")
	}
	return data, nil
}

type fakeLLM struct {
	mu     sync.Mutex
	reply  string
	err    error
	inputs []string
}

func (f *fakeLLM) Complete(_ context.Context, _, user string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, user)
	return f.reply, f.err
}

type fakeVision struct {
	mu      sync.Mutex
	reply   string
	err     error
	prompts []string
	images  []string
}

func (f *fakeVision) CompleteImage(_ context.Context, prompt, imageURL string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	f.images = append(f.images, imageURL)
	return f.reply, f.err
}

func newTestBot(t *testing.T, chat *fakeChat, model *fakeLLM, renderErr error) *Bot {
	t.Helper()
	logger, _ := test.NewNullLogger()
	return New(Config{
		Chat:          chat,
		Completer:     model,
		Logger:        logger,
		BotUserID:     "UBOT",
		DiagramUpload: true,
		Renderer: func(context.Context, string) ([]byte, string, error) {
			if renderErr != nil {
				return nil, "", renderErr
			}
			return []byte("png"), "https://mermaid.live/edit#pako:x", nil
		},
	})
}

// dispatch 同步执行一个事件并返回 ack 次数
func dispatch(b *Bot, evt socketmode.Event) int {
	acked := 0
	if evt.Request == nil {
		evt.Request = &socketmode.Request{EnvelopeID: "env-1"}
	}
	b.Dispatch(context.Background(), evt, func(socketmode.Request) { acked++ })
	b.Wait()
	return acked
}

func eventsAPI(innerType slackevents.EventsAPIType, data any) socketmode.Event {
	return socketmode.Event{
		Type: socketmode.EventTypeEventsAPI,
		Data: slackevents.EventsAPIEvent{
			Type:       slackevents.CallbackEvent,
			InnerEvent: slackevents.EventsAPIInnerEvent{Type: string(innerType), Data: data},
		},
	}
}

func TestMention_AnswersInThread(t *testing.T) {
	chat := newFakeChat()
	model := &fakeLLM{reply: "Go is a *compiled* language."}
	b := newTestBot(t, chat, model, nil)

	acked := dispatch(b, eventsAPI(slackevents.AppMention, &slackevents.AppMentionEvent{
		User: "U1", Channel: "C1", TimeStamp: "100.1", Text: "<@UBOT> what is go?",
	}))

	assert.Equal(t, 1, acked)
	assert.Equal(t, []string{"what is go?"}, model.inputs)
	assert.Equal(t, []string{
		"info:C1", "+eyes", "post:C1@100.1", "-eyes", "+white_check_mark",
	}, chat.calls)
	assert.NotEmpty(t, chat.posts["C1"])
}

func TestMention_JoinsChannelFirst(t *testing.T) {
	chat := newFakeChat()
	chat.isMember = false
	b := newTestBot(t, chat, &fakeLLM{reply: "ok"}, nil)

	dispatch(b, eventsAPI(slackevents.AppMention, &slackevents.AppMentionEvent{
		User: "U1", Channel: "C1", TimeStamp: "1.0", ThreadTimeStamp: "0.5", Text: "<@UBOT> hi there",
	}))

	require.GreaterOrEqual(t, len(chat.calls), 3)
	assert.Equal(t, []string{"info:C1", "join:C1"}, chat.calls[:2])
	assert.Contains(t, chat.calls, "post:C1@0.5")
}

func TestMention_Empty(t *testing.T) {
	chat := newFakeChat()
	model := &fakeLLM{reply: "unused"}
	b := newTestBot(t, chat, model, nil)

	dispatch(b, eventsAPI(slackevents.AppMention, &slackevents.AppMentionEvent{
		User: "U1", Channel: "C1", TimeStamp: "1.0", Text: "<@UBOT>  ",
	}))

	assert.Empty(t, model.inputs)
	assert.Equal(t, []string{emptyMentionText}, chat.texts["C1"])
}

func TestMention_ModelErrorApologizes(t *testing.T) {
	chat := newFakeChat()
	b := newTestBot(t, chat, &fakeLLM{err: errors.New("quota exceeded")}, nil)

	dispatch(b, eventsAPI(slackevents.AppMention, &slackevents.AppMentionEvent{
		User: "U1", Channel: "C1", TimeStamp: "1.0", Text: "<@UBOT> help",
	}))

	require.Len(t, chat.texts["C1"], 1)
	assert.Equal(t, "Sorry, I encountered an error: quota exceeded", chat.texts["C1"][0])
	assert.NotContains(t, chat.calls, "+white_check_mark")
}

func TestMention_ApologyFallsBackToDM(t *testing.T) {
	chat := newFakeChat()
	chat.threadTextErr = errors.New("channel_not_found")
	b := newTestBot(t, chat, &fakeLLM{err: errors.New("boom")}, nil)

	dispatch(b, eventsAPI(slackevents.AppMention, &slackevents.AppMentionEvent{
		User: "U1", Channel: "C1", TimeStamp: "1.0", Text: "<@UBOT> help",
	}))

	assert.Equal(t, []string{"I encountered an error: boom"}, chat.texts["DU1"])
}

func TestMention_IgnoresBots(t *testing.T) {
	chat := newFakeChat()
	model := &fakeLLM{reply: "x"}
	b := newTestBot(t, chat, model, nil)

	dispatch(b, eventsAPI(slackevents.AppMention, &slackevents.AppMentionEvent{
		User: "U2", BotID: "B1", Channel: "C1", Text: "<@UBOT> hi",
	}))
	dispatch(b, eventsAPI(slackevents.AppMention, &slackevents.AppMentionEvent{
		User: "UBOT", Channel: "C1", Text: "<@UBOT> hi",
	}))

	assert.Empty(t, model.inputs)
	assert.Empty(t, chat.calls)
}

func TestDirectMessage(t *testing.T) {
	tests := []struct {
		name    string
		event   *slackevents.MessageEvent
		handled bool
	}{
		{"im", &slackevents.MessageEvent{User: "U1", Channel: "D1", ChannelType: "im", TimeStamp: "2.0", Text: "hello"}, true},
		{"channel message", &slackevents.MessageEvent{User: "U1", Channel: "C1", ChannelType: "channel", TimeStamp: "2.0", Text: "hello"}, false},
		{"subtype", &slackevents.MessageEvent{User: "U1", Channel: "D1", ChannelType: "im", SubType: "message_changed", Text: "hello"}, false},
		{"bot", &slackevents.MessageEvent{User: "U9", BotID: "B9", Channel: "D1", ChannelType: "im", Text: "hello"}, false},
		{"own message", &slackevents.MessageEvent{User: "UBOT", Channel: "D1", ChannelType: "im", Text: "hello"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chat := newFakeChat()
			model := &fakeLLM{reply: "hi!"}
			b := newTestBot(t, chat, model, nil)

			dispatch(b, eventsAPI(slackevents.Message, tt.event))

			if !tt.handled {
				assert.Empty(t, model.inputs)
				assert.Empty(t, chat.calls)
				return
			}
			assert.Equal(t, []string{"hello"}, model.inputs)
			assert.Contains(t, chat.calls, "post:D1@2.0")
			assert.NotContains(t, chat.calls, "info:D1")
		})
	}
}

func TestMemberJoined(t *testing.T) {
	chat := newFakeChat()
	b := newTestBot(t, chat, &fakeLLM{}, nil)

	dispatch(b, eventsAPI(slackevents.MemberJoinedChannel, &slackevents.MemberJoinedChannelEvent{User: "U1", Channel: "C1"}))
	assert.Empty(t, chat.texts["C1"])

	dispatch(b, eventsAPI(slackevents.MemberJoinedChannel, &slackevents.MemberJoinedChannelEvent{User: "UBOT", Channel: "C1"}))
	assert.Equal(t, []string{greetingText}, chat.texts["C1"])
}

func slash(command, text string) socketmode.Event {
	return socketmode.Event{
		Type: socketmode.EventTypeSlashCommand,
		Data: slack.SlashCommand{
			Command: command, Text: text, ChannelID: "C1", UserID: "U1",
			ResponseURL: "https://hooks.example/resp",
		},
	}
}

func TestSlashCommands(t *testing.T) {
	tests := []struct {
		command string
		text    string
		input   string
	}{
		{"/ask", " what is a goroutine? ", "what is a goroutine?"},
		{"/explain", "x := <-ch", "Please explain this code:\nx := <-ch"},
		{"/improve", "me want job", "Please improve this text:\nme want job"},
	}
	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			chat := newFakeChat()
			model := &fakeLLM{reply: "*Answer*\n\nSome text."}
			b := newTestBot(t, chat, model, nil)

			acked := dispatch(b, slash(tt.command, tt.text))

			assert.Equal(t, 1, acked)
			assert.Equal(t, []string{tt.input}, model.inputs)
			require.Len(t, chat.replies, 1)
			assert.NotEmpty(t, chat.replies[0].Blocks)
			assert.False(t, chat.replies[0].InChannel)
		})
	}
}

func TestSlashCommand_Error(t *testing.T) {
	chat := newFakeChat()
	b := newTestBot(t, chat, &fakeLLM{err: errors.New("down")}, nil)

	dispatch(b, slash("/ask", "hi"))

	require.Len(t, chat.replies, 1)
	assert.Equal(t, commandErrorText, chat.replies[0].Text)
}

func TestSlashCommand_Unknown(t *testing.T) {
	chat := newFakeChat()
	model := &fakeLLM{reply: "x"}
	b := newTestBot(t, chat, model, nil)

	dispatch(b, slash("/weather", "paris"))

	assert.Empty(t, model.inputs)
	assert.Empty(t, chat.replies)
}

func TestDiagramCommand(t *testing.T) {
	t.Run("usage", func(t *testing.T) {
		chat := newFakeChat()
		model := &fakeLLM{}
		b := newTestBot(t, chat, model, nil)

		dispatch(b, slash("/diagram", "  "))

		assert.Empty(t, model.inputs)
		require.Len(t, chat.replies, 1)
		assert.Equal(t, diagramUsageText, chat.replies[0].Text)
	})

	t.Run("renders and uploads", func(t *testing.T) {
		chat := newFakeChat()
		model := &fakeLLM{reply: "```mermaid\ngraph TD\nA-->B\n```"}
		b := newTestBot(t, chat, model, nil)

		dispatch(b, slash("/diagram", "two boxes"))

		require.Len(t, chat.replies, 1)
		blocks := chat.replies[0].Blocks
		require.NotEmpty(t, blocks)
		assert.Equal(t, &slackify.Text{Markup: diagramIntroText}, blocks[0])

		var joined strings.Builder
		for _, blk := range blocks {
			if txt, ok := blk.(*slackify.Text); ok {
				joined.WriteString(txt.Markup)
			}
		}
		assert.Contains(t, joined.String(), "graph TD")

		require.Len(t, chat.uploads, 1)
		assert.Equal(t, "C1", chat.uploads[0].ChannelID)
		assert.Equal(t, "two boxes", chat.uploads[0].Title)
		assert.Equal(t, []byte("png"), chat.uploads[0].Data)
		assert.Equal(t, "diagram.png", chat.uploads[0].Filename)
		assert.Equal(t, "Edit in Mermaid Live: https://mermaid.live/edit#pako:x", chat.uploads[0].InitialComment)
	})

	t.Run("render failure keeps reply", func(t *testing.T) {
		chat := newFakeChat()
		b := newTestBot(t, chat, &fakeLLM{reply: "graph TD\nA-->B"}, errors.New("mermaid.ink 503"))

		dispatch(b, slash("/diagram", "two boxes"))

		assert.Len(t, chat.replies, 1)
		assert.Empty(t, chat.uploads)
	})

	t.Run("empty diagram", func(t *testing.T) {
		chat := newFakeChat()
		b := newTestBot(t, chat, &fakeLLM{reply: "```mermaid\n```"}, nil)

		dispatch(b, slash("/diagram", "nothing"))

		require.Len(t, chat.replies, 1)
		assert.Equal(t, diagramErrorText, chat.replies[0].Text)
		assert.Empty(t, chat.uploads)
	})
}

func TestShortcut_OpensPrefilledModal(t *testing.T) {
	chat := newFakeChat()
	b := newTestBot(t, chat, &fakeLLM{}, nil)

	cb := slack.InteractionCallback{
		Type:       slack.InteractionTypeMessageAction,
		CallbackID: "explain_code_shortcut",
		TriggerID:  "trig-1",
		User:       slack.User{ID: "U1"},
	}
	cb.Channel.ID = "C1"
	cb.Message.Timestamp = "42.0"
	cb.Message.Text = "look:\n```go\nfmt.Println(1)\n```"

	dispatch(b, socketmode.Event{Type: socketmode.EventTypeInteractive, Data: cb})

	require.Len(t, chat.views, 1)
	view := chat.views[0]
	assert.Equal(t, "explain_code_modal", view.CallbackID)

	var meta modalMetadata
	require.NoError(t, json.Unmarshal([]byte(view.PrivateMetadata), &meta))
	assert.Equal(t, modalMetadata{Channel: "C1", ThreadTS: "42.0", User: "U1"}, meta)

	require.Len(t, view.Blocks.BlockSet, 1)
	input, ok := view.Blocks.BlockSet[0].(*slack.InputBlock)
	require.True(t, ok)
	assert.Equal(t, "code_block", input.BlockID)
	element, ok := input.Element.(*slack.PlainTextInputBlockElement)
	require.True(t, ok)
	assert.Equal(t, "code", element.ActionID)
	assert.Equal(t, "fmt.Println(1)", element.InitialValue)
}

func TestShortcut_GlobalAskHasNoChannel(t *testing.T) {
	chat := newFakeChat()
	b := newTestBot(t, chat, &fakeLLM{}, nil)

	dispatch(b, socketmode.Event{Type: socketmode.EventTypeInteractive, Data: slack.InteractionCallback{
		Type: slack.InteractionTypeShortcut, CallbackID: "ask_shortcut", User: slack.User{ID: "U1"},
	}})

	require.Len(t, chat.views, 1)
	meta, err := decodeMetadata(chat.views[0].PrivateMetadata)
	require.NoError(t, err)
	assert.Equal(t, modalMetadata{User: "U1"}, meta)
}

func TestShortcut_ModalFailureNotifiesUser(t *testing.T) {
	chat := newFakeChat()
	chat.modalErr = errors.New("expired_trigger_id")
	b := newTestBot(t, chat, &fakeLLM{}, nil)

	dispatch(b, socketmode.Event{Type: socketmode.EventTypeInteractive, Data: slack.InteractionCallback{
		Type: slack.InteractionTypeShortcut, CallbackID: "ask_shortcut", User: slack.User{ID: "U1"},
	}})

	require.Len(t, chat.texts["DU1"], 1)
	assert.Contains(t, chat.texts["DU1"][0], "opening the response form")
}

func submission(callbackID, metadata, blockID, actionID, value string) socketmode.Event {
	cb := slack.InteractionCallback{
		Type: slack.InteractionTypeViewSubmission,
		User: slack.User{ID: "U1"},
	}
	cb.View.CallbackID = callbackID
	cb.View.PrivateMetadata = metadata
	cb.View.State = &slack.ViewState{Values: map[string]map[string]slack.BlockAction{
		blockID: {actionID: {Value: value}},
	}}
	return socketmode.Event{Type: socketmode.EventTypeInteractive, Data: cb}
}

func TestSubmission_DeliversToChannel(t *testing.T) {
	chat := newFakeChat()
	model := &fakeLLM{reply: "It prints *1*."}
	b := newTestBot(t, chat, model, nil)

	meta := modalMetadata{Channel: "C1", ThreadTS: "42.0", User: "U1"}.encode()
	dispatch(b, submission("explain_code_modal", meta, "code_block", "code", " fmt.Println(1) "))

	assert.Equal(t, []string{"Please explain this code:\nfmt.Println(1)"}, model.inputs)
	assert.Contains(t, chat.calls, "post:C1@42.0")
	assert.Equal(t, []string{"I've posted the code explanation in the channel."}, chat.texts["DU1"])
}

func TestSubmission_BadMetadataUsesDM(t *testing.T) {
	chat := newFakeChat()
	b := newTestBot(t, chat, &fakeLLM{reply: "short summary"}, nil)

	dispatch(b, submission("summarize_modal", "{not json", "text_block", "text", "long text"))

	assert.Contains(t, chat.calls, "post:DU1@")
	assert.Empty(t, chat.posts["C1"])
}

func TestSubmission_ModelErrorNotifies(t *testing.T) {
	chat := newFakeChat()
	b := newTestBot(t, chat, &fakeLLM{err: errors.New("rate limited")}, nil)

	dispatch(b, submission("rewrite_modal", "", "text_block", "text", "draft"))

	require.Len(t, chat.texts["DU1"], 1)
	assert.Equal(t, "Sorry, I encountered an error while preparing the rewritten text: rate limited", chat.texts["DU1"][0])
}

func TestReady(t *testing.T) {
	b := newTestBot(t, newFakeChat(), &fakeLLM{}, nil)

	assert.ErrorIs(t, b.Ready(context.Background()), ErrNotConnected)

	dispatch(b, socketmode.Event{Type: socketmode.EventTypeConnected})
	assert.NoError(t, b.Ready(context.Background()))

	dispatch(b, socketmode.Event{Type: socketmode.EventTypeDisconnect})
	assert.ErrorIs(t, b.Ready(context.Background()), ErrNotConnected)
}

func TestDispatch_UnexpectedPayloadStillAcked(t *testing.T) {
	chat := newFakeChat()
	b := newTestBot(t, chat, &fakeLLM{}, nil)

	acked := dispatch(b, socketmode.Event{Type: socketmode.EventTypeSlashCommand, Data: "garbage"})

	assert.Equal(t, 1, acked)
	assert.Empty(t, chat.calls)
}

func TestStripMentions(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"<@UBOT> hello", "hello"},
		{"hey <@UBOT|slackify>, help", "hey , help"},
		{"<@U1><@U2>", ""},
		{"no mention", "no mention"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, stripMentions(tt.in), tt.in)
	}
}

func TestCodeOrText(t *testing.T) {
	assert.Equal(t, "x = 1", codeOrText("run ```x = 1``` now"))
	assert.Equal(t, "plain words", codeOrText("  plain words "))
}

func TestClip(t *testing.T) {
	assert.Equal(t, "héll", clip("héllo", 4))
	assert.Equal(t, "hi", clip("hi", 4))
}

func TestModalsAreConsistent(t *testing.T) {
	for shortcut, id := range shortcuts {
		m, ok := modals[id]
		require.True(t, ok, shortcut)
		assert.Equal(t, id, m.callbackID)
		assert.LessOrEqual(t, len(m.title), 24, id)
	}
}

func TestSlashCommand_ExpiredResponseURLApologizesByDM(t *testing.T) {
	chat := newFakeChat()
	chat.respondErr = errors.New("expired_url")
	b := newTestBot(t, chat, &fakeLLM{err: errors.New("down")}, nil)

	dispatch(b, slash("/ask", "hi"))

	assert.Contains(t, chat.calls, "respond")
	assert.Equal(t, []string{commandErrorText}, chat.texts["DU1"])
}

func TestSlashCommand_NoResponseURLApologizesByDM(t *testing.T) {
	chat := newFakeChat()
	b := newTestBot(t, chat, &fakeLLM{reply: "answer"}, nil)

	evt := slash("/ask", "hi")
	cmd := evt.Data.(slack.SlashCommand)
	cmd.ResponseURL = ""
	evt.Data = cmd
	dispatch(b, evt)

	assert.NotContains(t, chat.calls, "respond")
	assert.Equal(t, []string{commandErrorText}, chat.texts["DU1"])
}

func TestSubmission_DeliveryFailureNotifies(t *testing.T) {
	chat := newFakeChat()
	chat.postErr = errors.New("msg_too_long")
	b := newTestBot(t, chat, &fakeLLM{reply: "It prints *1*."}, nil)

	meta := modalMetadata{Channel: "C1", ThreadTS: "42.0", User: "U1"}.encode()
	dispatch(b, submission("explain_code_modal", meta, "code_block", "code", "fmt.Println(1)"))

	assert.Contains(t, chat.calls, "post:C1@42.0")
	assert.Contains(t, chat.calls, "post:DU1@42.0")
	require.Len(t, chat.texts["DU1"], 1)
	assert.Equal(t, "Sorry, I couldn't deliver the code explanation. Please try again.", chat.texts["DU1"][0])
}

func TestChannelJoinMessage(t *testing.T) {
	chat := newFakeChat()
	model := &fakeLLM{reply: "x"}
	logger, hook := test.NewNullLogger()
	b := New(Config{Chat: chat, Completer: model, Logger: logger, BotUserID: "UBOT"})

	dispatch(b, eventsAPI(slackevents.Message, &slackevents.MessageEvent{
		Type: "message", SubType: "channel_join", User: "UBOT", Channel: "C1", ChannelType: "channel",
	}))
	dispatch(b, eventsAPI(slackevents.Message, &slackevents.MessageEvent{
		Type: "message", SubType: "channel_join", User: "U2", Channel: "C1", ChannelType: "channel",
	}))

	assert.Empty(t, model.inputs)
	assert.Empty(t, chat.calls)

	joined := 0
	for _, e := range hook.AllEntries() {
		if e.Message == "joined channel" {
			joined++
			assert.Equal(t, "C1", e.Data["channel"])
		}
	}
	assert.Equal(t, 1, joined)
}

// pngOf 生成 w×h 的纯色 PNG
func pngOf(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.RGBA{R: 200, A: 255}}, image.Point{}, draw.Src)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func analyzeSubmission(fileID, prompt string) socketmode.Event {
	cb := slack.InteractionCallback{
		Type: slack.InteractionTypeViewSubmission,
		User: slack.User{ID: "U1"},
	}
	cb.View.CallbackID = analyzeCallbackID
	cb.View.PrivateMetadata = modalMetadata{User: "U1"}.encode()
	values := map[string]map[string]slack.BlockAction{
		analyzePromptBlock: {analyzePromptAction: {Value: prompt}},
	}
	if fileID != "" {
		values[analyzeFileBlock] = map[string]slack.BlockAction{
			analyzeFileAction: {Files: []slack.File{{ID: fileID}}},
		}
	}
	cb.View.State = &slack.ViewState{Values: values}
	return socketmode.Event{Type: socketmode.EventTypeInteractive, Data: cb}
}

func TestAnalyzeCommand(t *testing.T) {
	t.Run("opens file modal", func(t *testing.T) {
		chat := newFakeChat()
		b := newTestBot(t, chat, &fakeLLM{}, nil)
		b.vision = &fakeVision{}

		acked := dispatch(b, slash("/analyze", ""))

		assert.Equal(t, 1, acked)
		assert.Empty(t, chat.replies)
		require.Len(t, chat.views, 1)
		view := chat.views[0]
		assert.Equal(t, analyzeCallbackID, view.CallbackID)

		meta, err := decodeMetadata(view.PrivateMetadata)
		require.NoError(t, err)
		assert.Equal(t, modalMetadata{User: "U1"}, meta)

		require.Len(t, view.Blocks.BlockSet, 3)
		fileBlock, ok := view.Blocks.BlockSet[1].(*slack.InputBlock)
		require.True(t, ok)
		assert.Equal(t, analyzeFileBlock, fileBlock.BlockID)
		file, ok := fileBlock.Element.(*slack.FileInputBlockElement)
		require.True(t, ok)
		assert.Equal(t, analyzeFileAction, file.ActionID)
		assert.Equal(t, 1, file.MaxFiles)
		assert.Contains(t, file.FileTypes, "png")

		promptBlock, ok := view.Blocks.BlockSet[2].(*slack.InputBlock)
		require.True(t, ok)
		assert.True(t, promptBlock.Optional)
	})

	t.Run("refused in threads", func(t *testing.T) {
		chat := newFakeChat()
		b := newTestBot(t, chat, &fakeLLM{}, nil)
		b.vision = &fakeVision{}

		evt := slash("/analyze", "")
		evt.Request = &socketmode.Request{
			EnvelopeID: "env-1",
			Payload:    json.RawMessage(`{"command":"/analyze","thread_ts":"42.0"}`),
		}
		dispatch(b, evt)

		assert.Empty(t, chat.views)
		require.Len(t, chat.replies, 1)
		assert.False(t, chat.replies[0].InChannel)
		assert.Equal(t, []slackify.Block{&slackify.Text{Markup: analyzeThreadText}}, chat.replies[0].Blocks)
	})

	t.Run("modal failure", func(t *testing.T) {
		chat := newFakeChat()
		chat.modalErr = errors.New("expired_trigger_id")
		b := newTestBot(t, chat, &fakeLLM{}, nil)
		b.vision = &fakeVision{}

		dispatch(b, slash("/analyze", ""))

		require.Len(t, chat.replies, 1)
		assert.Equal(t, commandErrorText, chat.replies[0].Text)
	})

	t.Run("no vision model", func(t *testing.T) {
		chat := newFakeChat()
		b := newTestBot(t, chat, &fakeLLM{}, nil)

		dispatch(b, slash("/analyze", ""))

		assert.Empty(t, chat.views)
		require.Len(t, chat.replies, 1)
		assert.Equal(t, commandErrorText, chat.replies[0].Text)
	})
}

func TestAnalyzeSubmission(t *testing.T) {
	const url = "https://files.slack.com/download/chart.png"

	t.Run("resizes and answers by DM", func(t *testing.T) {
		chat := newFakeChat()
		chat.files = map[string]slackapi.File{"F1": {ID: "F1", Name: "chart.png", MimeType: "image/png", URL: url}}
		chat.downloads = map[string][]byte{url: pngOf(t, 2048, 1024)}
		vision := &fakeVision{reply: "A *red* rectangle."}
		b := newTestBot(t, chat, &fakeLLM{}, nil)
		b.vision = vision

		dispatch(b, analyzeSubmission("F1", " what colour? "))

		require.Len(t, vision.prompts, 1)
		assert.Equal(t, "what colour?", vision.prompts[0])

		const prefix = "data:image/png;base64,"
		require.True(t, strings.HasPrefix(vision.images[0], prefix))
		raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(vision.images[0], prefix))
		require.NoError(t, err)
		cfg, err := png.DecodeConfig(bytes.NewReader(raw))
		require.NoError(t, err)
		assert.Equal(t, 1024, cfg.Width)
		assert.Equal(t, 512, cfg.Height)

		assert.Contains(t, chat.calls, "post:DU1@")
		assert.NotEmpty(t, chat.posts["DU1"])
		assert.Empty(t, chat.texts["DU1"])
	})

	tests := []struct {
		name   string
		file   slackapi.File
		data   []byte
		vision *fakeVision
		want   string
	}{
		{
			name:   "wrong type",
			file:   slackapi.File{ID: "F1", MimeType: "application/pdf", URL: url},
			vision: &fakeVision{},
			want:   analyzeTypeText,
		},
		{
			name:   "undecodable image",
			file:   slackapi.File{ID: "F1", MimeType: "image/heic", URL: url},
			data:   []byte("not an image"),
			vision: &fakeVision{},
			want:   analyzeTypeText,
		},
		{
			name:   "download denied",
			file:   slackapi.File{ID: "F1", MimeType: "image/png", URL: url},
			vision: &fakeVision{},
			want:   analyzeAccessText,
		},
		{
			name:   "model error",
			file:   slackapi.File{ID: "F1", MimeType: "image/png", URL: url},
			data:   pngOf(t, 8, 8),
			vision: &fakeVision{err: errors.New("rate limited")},
			want:   analyzeErrorText,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chat := newFakeChat()
			chat.files = map[string]slackapi.File{"F1": tt.file}
			chat.downloads = map[string][]byte{}
			if tt.data != nil {
				chat.downloads[url] = tt.data
			}
			b := newTestBot(t, chat, &fakeLLM{}, nil)
			b.vision = tt.vision

			dispatch(b, analyzeSubmission("F1", ""))

			assert.Equal(t, []string{tt.want}, chat.texts["DU1"])
			assert.Empty(t, chat.posts["DU1"])
		})
	}

	t.Run("missing file", func(t *testing.T) {
		chat := newFakeChat()
		vision := &fakeVision{}
		b := newTestBot(t, chat, &fakeLLM{}, nil)
		b.vision = vision

		dispatch(b, analyzeSubmission("F404", ""))

		assert.Contains(t, chat.calls, "file:F404")
		assert.Equal(t, []string{analyzeAccessText}, chat.texts["DU1"])
		assert.Empty(t, vision.prompts)
	})
}

func TestSlashThread(t *testing.T) {
	assert.Equal(t, "", slashThread(nil))
	assert.Equal(t, "", slashThread(&socketmode.Request{Payload: json.RawMessage(`{"command":"/ask"}`)}))
	assert.Equal(t, "", slashThread(&socketmode.Request{Payload: json.RawMessage(`not json`)}))
	assert.Equal(t, "1.5", slashThread(&socketmode.Request{Payload: json.RawMessage(`{"thread_ts":"1.5"}`)}))
}
