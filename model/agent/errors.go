package agent

import "errors"

// ErrRejected is returned by a BatchFunc when the approver rejected an
// action.  Engines must treat it as a pause signal rather than a failure:
// combined with Pause the loop parks until Resume.
var ErrRejected = errors.New("action rejected by approver")
