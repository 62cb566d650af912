package directory

// UserAttributes is one iam_user row projected into the flat shape the PDP's
// data fetcher expects. The key set is fixed: absent columns serialise as
// null, never as a missing key, so none of the pointer fields use omitempty.
// Key is the user's email — the identity the PDP matches on — not the
// iam_user primary key (the login name); the two are distinct identity
// spaces.
type UserAttributes struct {
	Key           *string `json:"key"`
	Country       *string `json:"country"`
	Position      *string `json:"position"`
	Authority     *string `json:"authority"`
	SSMMember     *bool   `json:"ssm_member"`
	OrgUnitLevelA *string `json:"org_unit_level_a"`
	Team          *string `json:"team"`
}

// OrgAttributes is one organisation row in PDP shape. Authority has no
// backing column on organisation and is always null; it is kept for parity
// with the consumer's expected key set.
type OrgAttributes struct {
	Country   *string `json:"country"`
	Orgpath   *string `json:"orgpath"`
	Name      *string `json:"name"`
	Authority *string `json:"authority"`
	Approvers *string `json:"approvers"`
}
