package service

import (
	"context"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tempmail/client/internal/config"
	"tempmail/client/internal/domain"
	"tempmail/client/internal/storage/memory"
)

var testMailbox = config.MailboxConfig{
	Domains:           []string{"temp.mail", "drop.box"},
	UsernameLength:    10,
	MinUsernameLength: 4,
}

func newTestIdentity(t *testing.T) (*IdentityService, *fakeAPI, *memory.Store, *fakeClipboard) {
	t.Helper()
	api := newFakeAPI()
	repo := memory.NewStore()
	clip := &fakeClipboard{}
	svc := NewIdentityService(api, repo, testMailbox, false, nil, WithClipboard(clip))
	return svc, api, repo, clip
}

func TestIdentityInit(t *testing.T) {
	t.Run("首次启动生成地址", func(t *testing.T) {
		svc, api, repo, _ := newTestIdentity(t)
		require.NoError(t, svc.Init(context.Background()))

		addr := svc.Current()
		assert.Regexp(t, regexp.MustCompile(`^[a-z0-9]+@temp\.mail$`), addr.String())
		assert.Len(t, addr.Username, 10)
		assert.Len(t, api.created, 1)

		saved, err := repo.LoadIdentity()
		require.NoError(t, err)
		assert.Equal(t, addr, saved)
	})

	t.Run("恢复上次的地址", func(t *testing.T) {
		svc, _, repo, _ := newTestIdentity(t)
		prev := domain.NewAddress("kept", "drop.box")
		require.NoError(t, repo.SaveIdentity(prev))

		require.NoError(t, svc.Init(context.Background()))
		assert.Equal(t, prev, svc.Current())
		assert.Equal(t, "drop.box", svc.State().SelectedDomain)
	})

	t.Run("域名不再可用时重新生成", func(t *testing.T) {
		svc, _, repo, _ := newTestIdentity(t)
		require.NoError(t, repo.SaveIdentity(domain.NewAddress("old", "gone.example")))

		require.NoError(t, svc.Init(context.Background()))
		assert.Equal(t, "temp.mail", svc.Current().Domain)
	})
}

func TestGenerateNewEmail(t *testing.T) {
	t.Run("自定义用户名转为小写", func(t *testing.T) {
		svc, _, _, _ := newTestIdentity(t)
		warning, err := svc.SetCustomUsername("Alice")
		require.NoError(t, err)
		assert.Nil(t, warning)

		addr, err := svc.GenerateNewEmail(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "alice", addr.Username)
		assert.Contains(t, testMailbox.Domains, addr.Domain)
		assert.Equal(t, domain.UsernameCustom, svc.State().Mode)
	})

	t.Run("短用户名只警告", func(t *testing.T) {
		svc, _, _, _ := newTestIdentity(t)
		warning, err := svc.SetCustomUsername("ab")
		require.NoError(t, err)
		require.NotNil(t, warning)
		assert.Equal(t, 2, warning.Length)

		addr, err := svc.GenerateNewEmail(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "ab", addr.Username)
	})

	t.Run("非法用户名被拒绝", func(t *testing.T) {
		svc, _, _, _ := newTestIdentity(t)
		_, err := svc.SetCustomUsername("bad name!")
		assert.ErrorIs(t, err, domain.ErrInvalidUsername)
		assert.Equal(t, domain.UsernameGenerated, svc.Pending().Kind())
	})

	t.Run("重置后恢复随机用户名", func(t *testing.T) {
		svc, _, _, _ := newTestIdentity(t)
		_, err := svc.SetCustomUsername("alice")
		require.NoError(t, err)
		svc.ResetToAPIMode()

		addr, err := svc.GenerateNewEmail(context.Background())
		require.NoError(t, err)
		assert.NotEqual(t, "alice", addr.Username)
		assert.Equal(t, domain.UsernameGenerated, svc.Pending().Kind())
	})

	t.Run("选择域名", func(t *testing.T) {
		svc, _, _, _ := newTestIdentity(t)
		assert.ErrorIs(t, svc.SelectDomain("evil.example"), domain.ErrDomainNotAllowed)
		require.NoError(t, svc.SelectDomain("DROP.BOX"))

		addr, err := svc.GenerateNewEmail(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "drop.box", addr.Domain)
	})

	t.Run("后端失败时保留原地址", func(t *testing.T) {
		svc, api, _, _ := newTestIdentity(t)
		first, err := svc.GenerateNewEmail(context.Background())
		require.NoError(t, err)

		api.createErr = domain.ErrUnavailable
		got, err := svc.GenerateNewEmail(context.Background())
		assert.ErrorIs(t, err, domain.ErrUnavailable)
		assert.Equal(t, first, got)
		assert.Equal(t, first, svc.Current())
		assert.ErrorIs(t, svc.LastError(), domain.ErrUnavailable)
		assert.NotEmpty(t, svc.State().LastError)

		api.createErr = nil
		_, err = svc.GenerateNewEmail(context.Background())
		require.NoError(t, err)
		assert.NoError(t, svc.LastError())
	})

	t.Run("使用后端随机用户名", func(t *testing.T) {
		api := newFakeAPI()
		api.username = "Remote42"
		svc := NewIdentityService(api, nil, testMailbox, true, nil)

		addr, err := svc.GenerateNewEmail(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "remote42", addr.Username)
	})

	t.Run("后端随机用户名不可用时本地生成", func(t *testing.T) {
		svc := NewIdentityService(newFakeAPI(), nil, testMailbox, true, nil)
		addr, err := svc.GenerateNewEmail(context.Background())
		require.NoError(t, err)
		assert.Len(t, addr.Username, 10)
	})

	t.Run("未配置域名", func(t *testing.T) {
		svc := NewIdentityService(newFakeAPI(), nil, config.MailboxConfig{}, false, nil)
		_, err := svc.GenerateNewEmail(context.Background())
		assert.ErrorIs(t, err, domain.ErrDomainNotAllowed)
	})
}

func TestIdentitySubscribeAndClipboard(t *testing.T) {
	svc, _, _, clip := newTestIdentity(t)

	assert.ErrorIs(t, svc.CopyEmailToClipboard(), domain.ErrInvalidAddress)

	ch, cancel := svc.Subscribe()
	defer cancel()

	addr, err := svc.GenerateNewEmail(context.Background())
	require.NoError(t, err)
	assert.Equal(t, addr, <-ch)

	require.NoError(t, svc.CopyEmailToClipboard())
	assert.Equal(t, addr.String(), clip.text)
}

func TestRefreshDomains(t *testing.T) {
	svc, api, _, _ := newTestIdentity(t)

	assert.Error(t, svc.RefreshDomains(context.Background()))
	assert.Equal(t, testMailbox.Domains, svc.Domains())

	require.NoError(t, svc.SelectDomain("drop.box"))
	api.domains = []string{"New.Mail", "", "bad domain"}
	require.NoError(t, svc.RefreshDomains(context.Background()))
	assert.Equal(t, []string{"new.mail"}, svc.Domains())
	assert.Equal(t, "new.mail", svc.State().SelectedDomain)
}
