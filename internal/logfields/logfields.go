package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyJobID      = "job_id"
	KeyJobType    = "job_type"
	KeyJobStatus  = "job_status"
	KeyDurationMS = "duration_ms"
	KeySchedule   = "schedule_name"
	KeyConfig     = "configuration"
	KeyCollection = "collection"
	KeyPage       = "page"
	KeyVersion    = "version"
	KeyVariant    = "variant"
	KeyLanguage   = "language"
	KeyLibrary    = "library"
	KeySpace      = "space"
	KeyUser       = "user"
	KeyReason     = "reason"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func JobID(id string) slog.Attr         { return slog.String(KeyJobID, id) }
func JobType(t string) slog.Attr        { return slog.String(KeyJobType, t) }
func JobStatus(s string) slog.Attr      { return slog.String(KeyJobStatus, s) }
func DurationMS(ms float64) slog.Attr   { return slog.Float64(KeyDurationMS, ms) }
func ScheduleName(n string) slog.Attr   { return slog.String(KeySchedule, n) }
func Config(ref string) slog.Attr       { return slog.String(KeyConfig, ref) }
func Collection(ref string) slog.Attr   { return slog.String(KeyCollection, ref) }
func Page(ref string) slog.Attr         { return slog.String(KeyPage, ref) }
func Version(ref string) slog.Attr      { return slog.String(KeyVersion, ref) }
func Variant(ref string) slog.Attr      { return slog.String(KeyVariant, ref) }
func Language(lang string) slog.Attr    { return slog.String(KeyLanguage, lang) }
func Library(ref string) slog.Attr      { return slog.String(KeyLibrary, ref) }
func Space(ref string) slog.Attr        { return slog.String(KeySpace, ref) }
func User(u string) slog.Attr           { return slog.String(KeyUser, u) }
func Reason(r string) slog.Attr         { return slog.String(KeyReason, r) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
