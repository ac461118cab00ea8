package banner

import "github.com/happyprime/alertbar/pkg/model"

// SuppressionHook lets the host override the display-suppression
// decision. It receives the computed suppression boolean and the
// resolved snapshot, and returns the boolean to use. The built-in rule
// suppresses lowest-tier alerts everywhere except the home page; a hook
// can widen or narrow that, for example into a severity-to-page-scope
// mapping.
type SuppressionHook func(suppressed bool, snap model.Snapshot) bool
