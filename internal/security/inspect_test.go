package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInspectBody(t *testing.T) {
	in := NewInspector()

	t.Run("普通正文无标记", func(t *testing.T) {
		assert.Empty(t, in.InspectBody("Your verification code is 123456"))
	})

	t.Run("脚本与内嵌对象", func(t *testing.T) {
		body := `<p onload="x()">hi</p><SCRIPT src="a.js"></SCRIPT><iframe src="x"></iframe>`
		assert.Equal(t, []string{WarningScript, WarningEventHandler, WarningEmbed}, in.InspectBody(body))
	})

	t.Run("javascript 链接", func(t *testing.T) {
		assert.Equal(t, []string{WarningScript}, in.InspectBody(`<a href="JavaScript:alert(1)">x</a>`))
	})

	t.Run("垃圾邮件关键词达到阈值", func(t *testing.T) {
		assert.Empty(t, in.InspectBody("Congratulations, you are a winner"))
		assert.Equal(t, []string{WarningSpam}, in.InspectBody("Congratulations winner! Click here now"))
	})
}

func TestRiskyAttachment(t *testing.T) {
	in := NewInspector()

	assert.True(t, in.DangerousName("setup.EXE"))
	assert.False(t, in.DangerousName("report.pdf"))
	assert.False(t, in.DangerousName("noext"))

	assert.True(t, Executable([]byte{0x4D, 0x5A, 0x90, 0x00}))
	assert.True(t, Executable([]byte("\x7fELF\x02")))
	assert.False(t, Executable([]byte("%PDF-1.7")))
	assert.False(t, Executable(nil))

	assert.True(t, in.RiskyAttachment("invoice.pdf", []byte{0x4D, 0x5A}))
	assert.True(t, in.RiskyAttachment("run.ps1", []byte("echo")))
	assert.False(t, in.RiskyAttachment("photo.png", []byte("\x89PNG")))
}
