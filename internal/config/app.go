package config

import "sync"

// appDirName is the directory name used under the XDG base directories.
const appDirName = "done"

// AppInfo is process-wide application metadata, fixed at startup.
type AppInfo struct {
	ID        string
	Name      string
	Version   string
	Commit    string
	Profile   string
	Website   string
	IssuesURL string
}

var (
	appInfo = AppInfo{
		ID:        "dev.done.Done",
		Name:      "Done",
		Version:   "dev",
		Profile:   "default",
		Website:   "https://github.com/done-devs/done",
		IssuesURL: "https://github.com/done-devs/done/issues",
	}
	appInfoOnce sync.Once
)

// SetAppInfo overrides the build metadata. Only the first call has effect;
// empty fields keep their defaults.
func SetAppInfo(version, commit string) {
	appInfoOnce.Do(func() {
		if version != "" {
			appInfo.Version = version
		}
		if commit != "" {
			appInfo.Commit = commit
		}
	})
}

// Info returns the application metadata.
func Info() AppInfo {
	return appInfo
}

// UserAgent returns the User-Agent sent to remote providers.
func (a AppInfo) UserAgent() string {
	return a.Name + "/" + a.Version
}
