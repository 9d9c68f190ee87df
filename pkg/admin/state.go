package admin

// State is the admin session state.
type State int

const (
	// StateUnconfigured means no admin credential is held.
	StateUnconfigured State = iota

	// StateVerifying means a credential is held but not yet confirmed by a
	// successful key listing.
	StateVerifying

	// StateValid means the credential was accepted by the gateway.
	StateValid

	// StateInvalid means the credential was rejected and discarded. Only an
	// explicit bootstrap or rotate leaves this state.
	StateInvalid
)

func (s State) String() string {
	switch s {
	case StateUnconfigured:
		return "unconfigured"
	case StateVerifying:
		return "verifying"
	case StateValid:
		return "valid"
	case StateInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Event drives a state transition.
type Event int

const (
	EventStartup Event = iota
	EventCredentialLoaded
	EventBootstrapSucceeded
	EventBootstrapFailed
	EventRotateSucceeded
	EventRotateFailed
	EventKeyListSucceeded
	EventKeyListUnauthorizedRecoverable
	EventKeyListUnauthorizedFinal
	EventKeyListFailed
	EventAutoRecoverFailed
	EventCleared
)

var eventNames = map[Event]string{
	EventStartup:                        "startup",
	EventCredentialLoaded:               "credential_loaded",
	EventBootstrapSucceeded:             "bootstrap_succeeded",
	EventBootstrapFailed:                "bootstrap_failed",
	EventRotateSucceeded:                "rotate_succeeded",
	EventRotateFailed:                   "rotate_failed",
	EventKeyListSucceeded:               "key_list_succeeded",
	EventKeyListUnauthorizedRecoverable: "key_list_unauthorized_recoverable",
	EventKeyListUnauthorizedFinal:       "key_list_unauthorized_final",
	EventKeyListFailed:                  "key_list_failed",
	EventAutoRecoverFailed:              "auto_recover_failed",
	EventCleared:                        "cleared",
}

func (e Event) String() string {
	if name, ok := eventNames[e]; ok {
		return name
	}
	return "unknown"
}

// Action is the side effect a transition requests.
type Action int

const (
	ActionNone Action = iota

	// ActionFetchKeys lists the gateway keys with the held credential.
	ActionFetchKeys

	// ActionStoreCredential persists the new credential, then fetches keys.
	ActionStoreCredential

	// ActionClearCredential forgets the held credential and key list.
	ActionClearCredential

	// ActionAutoRecover consumes the one-shot guard and bootstraps a
	// replacement credential.
	ActionAutoRecover
)

func (a Action) String() string {
	switch a {
	case ActionFetchKeys:
		return "fetch_keys"
	case ActionStoreCredential:
		return "store_credential"
	case ActionClearCredential:
		return "clear_credential"
	case ActionAutoRecover:
		return "auto_recover"
	default:
		return "none"
	}
}

type transitionKey struct {
	from  State
	event Event
}

type transition struct {
	to     State
	action Action
}

// transitions is the complete session table. Pairs missing from the table
// are ignored: the state is unchanged and no action runs.
var transitions = map[transitionKey]transition{
	{StateUnconfigured, EventStartup}:            {StateUnconfigured, ActionNone},
	{StateUnconfigured, EventCredentialLoaded}:   {StateVerifying, ActionFetchKeys},
	{StateUnconfigured, EventBootstrapSucceeded}: {StateValid, ActionStoreCredential},
	{StateUnconfigured, EventBootstrapFailed}:    {StateUnconfigured, ActionNone},
	{StateUnconfigured, EventRotateSucceeded}:    {StateValid, ActionStoreCredential},
	{StateUnconfigured, EventRotateFailed}:       {StateUnconfigured, ActionNone},
	{StateUnconfigured, EventCleared}:            {StateUnconfigured, ActionNone},

	{StateVerifying, EventCredentialLoaded}:               {StateVerifying, ActionFetchKeys},
	{StateVerifying, EventKeyListSucceeded}:               {StateValid, ActionNone},
	{StateVerifying, EventKeyListUnauthorizedRecoverable}: {StateVerifying, ActionAutoRecover},
	{StateVerifying, EventKeyListUnauthorizedFinal}:       {StateInvalid, ActionClearCredential},
	{StateVerifying, EventKeyListFailed}:                  {StateVerifying, ActionNone},
	{StateVerifying, EventAutoRecoverFailed}:              {StateInvalid, ActionClearCredential},
	{StateVerifying, EventBootstrapSucceeded}:             {StateValid, ActionStoreCredential},
	{StateVerifying, EventBootstrapFailed}:                {StateVerifying, ActionNone},
	{StateVerifying, EventRotateSucceeded}:                {StateValid, ActionStoreCredential},
	{StateVerifying, EventRotateFailed}:                   {StateVerifying, ActionNone},
	{StateVerifying, EventCleared}:                        {StateUnconfigured, ActionClearCredential},

	{StateValid, EventCredentialLoaded}:               {StateVerifying, ActionFetchKeys},
	{StateValid, EventKeyListSucceeded}:               {StateValid, ActionNone},
	{StateValid, EventKeyListUnauthorizedRecoverable}: {StateVerifying, ActionAutoRecover},
	{StateValid, EventKeyListUnauthorizedFinal}:       {StateInvalid, ActionClearCredential},
	{StateValid, EventKeyListFailed}:                  {StateValid, ActionNone},
	{StateValid, EventAutoRecoverFailed}:              {StateInvalid, ActionClearCredential},
	{StateValid, EventBootstrapSucceeded}:             {StateValid, ActionStoreCredential},
	{StateValid, EventBootstrapFailed}:                {StateValid, ActionNone},
	{StateValid, EventRotateSucceeded}:                {StateValid, ActionStoreCredential},
	{StateValid, EventRotateFailed}:                   {StateValid, ActionNone},
	{StateValid, EventCleared}:                        {StateUnconfigured, ActionClearCredential},

	{StateInvalid, EventBootstrapSucceeded}: {StateValid, ActionStoreCredential},
	{StateInvalid, EventBootstrapFailed}:    {StateInvalid, ActionNone},
	{StateInvalid, EventRotateSucceeded}:    {StateValid, ActionStoreCredential},
	{StateInvalid, EventRotateFailed}:       {StateInvalid, ActionNone},
	{StateInvalid, EventCleared}:            {StateUnconfigured, ActionNone},
}

// Next looks up the transition for event in state from. ok is false when the
// pair is not in the table.
func Next(from State, event Event) (to State, action Action, ok bool) {
	t, ok := transitions[transitionKey{from, event}]
	if !ok {
		return from, ActionNone, false
	}
	return t.to, t.action, true
}
