package domain

// ThemeOverride 主题覆盖选项
type ThemeOverride string

const (
	ThemeSystem ThemeOverride = "system"
	ThemeLight  ThemeOverride = "light"
	ThemeDark   ThemeOverride = "dark"
)

// AllowedSyncFrequencies 允许的同步频率（分钟）
var AllowedSyncFrequencies = []int{1, 2, 5, 10}

// SyncFrequencyUnset 用户未设置同步频率，监控列表按默认间隔轮询
const SyncFrequencyUnset = 0

// SyncPreferences 本地持久化的同步偏好，启动时加载一次
type SyncPreferences struct {
	SyncFrequencyMinutes int           `json:"syncFrequencyMinutes"`
	ThemeOverride        ThemeOverride `json:"themeOverride"`
}

// DefaultSyncPreferences 默认偏好：同步频率未设置，跟随系统主题
func DefaultSyncPreferences() SyncPreferences {
	return SyncPreferences{
		SyncFrequencyMinutes: SyncFrequencyUnset,
		ThemeOverride:        ThemeSystem,
	}
}

// HasSyncFrequency 用户是否设置过同步频率
func (p SyncPreferences) HasSyncFrequency() bool {
	return p.SyncFrequencyMinutes != SyncFrequencyUnset
}

// Validate 校验同步频率和主题取值；频率为 0 表示未设置
func (p SyncPreferences) Validate() error {
	okFreq := p.SyncFrequencyMinutes == SyncFrequencyUnset
	for _, f := range AllowedSyncFrequencies {
		if p.SyncFrequencyMinutes == f {
			okFreq = true
			break
		}
	}
	if !okFreq {
		return ErrInvalidPreferences
	}

	switch p.ThemeOverride {
	case ThemeSystem, ThemeLight, ThemeDark:
		return nil
	default:
		return ErrInvalidPreferences
	}
}
