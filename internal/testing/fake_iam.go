package testing

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/iam/types"
)

type fakePolicy struct {
	policy   types.Policy
	versions []types.PolicyVersion
	next     int
}

// FakeIAM is an in-memory implementation of the IAM API subset used by
// internal/iam. It is safe for concurrent use.
type FakeIAM struct {
	mu sync.Mutex

	Partition string
	AccountID string

	roles       map[string]*types.Role
	policies    map[string]*fakePolicy
	attachments map[string]map[string]bool
	errors      map[string][]error
	calls       []string
	clock       time.Time
}

// NewFakeIAM returns an empty fake account.
func NewFakeIAM() *FakeIAM {
	return &FakeIAM{
		Partition:   "aws",
		AccountID:   AccountID,
		roles:       map[string]*types.Role{},
		policies:    map[string]*fakePolicy{},
		attachments: map[string]map[string]bool{},
		errors:      map[string][]error{},
		clock:       time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// FailNext makes the next call to operation return err. Calls queue up.
func (f *FakeIAM) FailNext(operation string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors[operation] = append(f.errors[operation], err)
}

// Calls returns the operations invoked so far, in order.
func (f *FakeIAM) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// Role returns a stored role, or nil.
func (f *FakeIAM) Role(name string) *types.Role {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.roles[name]
}

// PolicyDocument returns the default version document of a policy, or "".
func (f *FakeIAM) PolicyDocument(policyARN string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.policies[policyARN]
	if !ok {
		return ""
	}
	for _, v := range p.versions {
		if v.IsDefaultVersion {
			doc, _ := url.PathUnescape(aws.ToString(v.Document))
			return doc
		}
	}
	return ""
}

// PolicyVersionCount returns the number of stored versions of a policy.
func (f *FakeIAM) PolicyVersionCount(policyARN string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.policies[policyARN]; ok {
		return len(p.versions)
	}
	return 0
}

// Attached reports whether a policy is attached to a role.
func (f *FakeIAM) Attached(role, policyARN string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attachments[role][policyARN]
}

// Empty reports whether the account holds no roles or policies.
func (f *FakeIAM) Empty() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.roles) == 0 && len(f.policies) == 0
}

// begin records a call and returns any injected error. f.mu must be held.
func (f *FakeIAM) begin(operation string) error {
	f.calls = append(f.calls, operation)
	if queue := f.errors[operation]; len(queue) > 0 {
		f.errors[operation] = queue[1:]
		return queue[0]
	}
	return nil
}

func (f *FakeIAM) now() *time.Time {
	f.clock = f.clock.Add(time.Minute)
	t := f.clock
	return &t
}

func noSuchEntity(format string, args ...any) error {
	return &types.NoSuchEntityException{Message: aws.String(fmt.Sprintf(format, args...))}
}

func (f *FakeIAM) GetRole(_ context.Context, in *iam.GetRoleInput, _ ...func(*iam.Options)) (*iam.GetRoleOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("GetRole"); err != nil {
		return nil, err
	}
	role, ok := f.roles[aws.ToString(in.RoleName)]
	if !ok {
		return nil, noSuchEntity("role %s not found", aws.ToString(in.RoleName))
	}
	copied := *role
	return &iam.GetRoleOutput{Role: &copied}, nil
}

func (f *FakeIAM) CreateRole(_ context.Context, in *iam.CreateRoleInput, _ ...func(*iam.Options)) (*iam.CreateRoleOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("CreateRole"); err != nil {
		return nil, err
	}
	name := aws.ToString(in.RoleName)
	if _, ok := f.roles[name]; ok {
		return nil, &types.EntityAlreadyExistsException{Message: aws.String("role exists")}
	}
	role := &types.Role{
		RoleName:                 in.RoleName,
		Arn:                      aws.String(fmt.Sprintf("arn:%s:iam::%s:role/%s", f.Partition, f.AccountID, name)),
		AssumeRolePolicyDocument: aws.String(url.PathEscape(aws.ToString(in.AssumeRolePolicyDocument))),
		CreateDate:               f.now(),
		Tags:                     in.Tags,
	}
	f.roles[name] = role
	copied := *role
	return &iam.CreateRoleOutput{Role: &copied}, nil
}

func (f *FakeIAM) UpdateAssumeRolePolicy(_ context.Context, in *iam.UpdateAssumeRolePolicyInput, _ ...func(*iam.Options)) (*iam.UpdateAssumeRolePolicyOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("UpdateAssumeRolePolicy"); err != nil {
		return nil, err
	}
	role, ok := f.roles[aws.ToString(in.RoleName)]
	if !ok {
		return nil, noSuchEntity("role %s not found", aws.ToString(in.RoleName))
	}
	role.AssumeRolePolicyDocument = aws.String(url.PathEscape(aws.ToString(in.PolicyDocument)))
	return &iam.UpdateAssumeRolePolicyOutput{}, nil
}

func (f *FakeIAM) DeleteRole(_ context.Context, in *iam.DeleteRoleInput, _ ...func(*iam.Options)) (*iam.DeleteRoleOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("DeleteRole"); err != nil {
		return nil, err
	}
	name := aws.ToString(in.RoleName)
	if _, ok := f.roles[name]; !ok {
		return nil, noSuchEntity("role %s not found", name)
	}
	if len(f.attachments[name]) > 0 {
		return nil, &types.DeleteConflictException{Message: aws.String("role has attached policies")}
	}
	delete(f.roles, name)
	delete(f.attachments, name)
	return &iam.DeleteRoleOutput{}, nil
}

func (f *FakeIAM) GetPolicy(_ context.Context, in *iam.GetPolicyInput, _ ...func(*iam.Options)) (*iam.GetPolicyOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("GetPolicy"); err != nil {
		return nil, err
	}
	p, ok := f.policies[aws.ToString(in.PolicyArn)]
	if !ok {
		return nil, noSuchEntity("policy %s not found", aws.ToString(in.PolicyArn))
	}
	copied := p.policy
	return &iam.GetPolicyOutput{Policy: &copied}, nil
}

func (f *FakeIAM) GetPolicyVersion(_ context.Context, in *iam.GetPolicyVersionInput, _ ...func(*iam.Options)) (*iam.GetPolicyVersionOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("GetPolicyVersion"); err != nil {
		return nil, err
	}
	p, ok := f.policies[aws.ToString(in.PolicyArn)]
	if !ok {
		return nil, noSuchEntity("policy %s not found", aws.ToString(in.PolicyArn))
	}
	for _, v := range p.versions {
		if aws.ToString(v.VersionId) == aws.ToString(in.VersionId) {
			copied := v
			return &iam.GetPolicyVersionOutput{PolicyVersion: &copied}, nil
		}
	}
	return nil, noSuchEntity("version %s not found", aws.ToString(in.VersionId))
}

func (f *FakeIAM) CreatePolicy(_ context.Context, in *iam.CreatePolicyInput, _ ...func(*iam.Options)) (*iam.CreatePolicyOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("CreatePolicy"); err != nil {
		return nil, err
	}
	policyARN := fmt.Sprintf("arn:%s:iam::%s:policy/%s", f.Partition, f.AccountID, aws.ToString(in.PolicyName))
	if _, ok := f.policies[policyARN]; ok {
		return nil, &types.EntityAlreadyExistsException{Message: aws.String("policy exists")}
	}
	p := &fakePolicy{
		policy: types.Policy{
			PolicyName:       in.PolicyName,
			Arn:              aws.String(policyARN),
			DefaultVersionId: aws.String("v1"),
			Tags:             in.Tags,
		},
	}
	p.addVersion(aws.ToString(in.PolicyDocument), f.now())
	f.policies[policyARN] = p
	copied := p.policy
	return &iam.CreatePolicyOutput{Policy: &copied}, nil
}

func (p *fakePolicy) addVersion(document string, created *time.Time) string {
	p.next++
	id := "v" + strconv.Itoa(p.next)
	for i := range p.versions {
		p.versions[i].IsDefaultVersion = false
	}
	p.versions = append(p.versions, types.PolicyVersion{
		VersionId:        aws.String(id),
		Document:         aws.String(url.PathEscape(document)),
		IsDefaultVersion: true,
		CreateDate:       created,
	})
	p.policy.DefaultVersionId = aws.String(id)
	return id
}

func (f *FakeIAM) ListPolicyVersions(_ context.Context, in *iam.ListPolicyVersionsInput, _ ...func(*iam.Options)) (*iam.ListPolicyVersionsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("ListPolicyVersions"); err != nil {
		return nil, err
	}
	p, ok := f.policies[aws.ToString(in.PolicyArn)]
	if !ok {
		return nil, noSuchEntity("policy %s not found", aws.ToString(in.PolicyArn))
	}
	versions := append([]types.PolicyVersion(nil), p.versions...)
	// IAM lists newest first
	sort.SliceStable(versions, func(i, j int) bool {
		return versions[i].CreateDate.After(*versions[j].CreateDate)
	})
	return &iam.ListPolicyVersionsOutput{Versions: versions}, nil
}

func (f *FakeIAM) CreatePolicyVersion(_ context.Context, in *iam.CreatePolicyVersionInput, _ ...func(*iam.Options)) (*iam.CreatePolicyVersionOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("CreatePolicyVersion"); err != nil {
		return nil, err
	}
	p, ok := f.policies[aws.ToString(in.PolicyArn)]
	if !ok {
		return nil, noSuchEntity("policy %s not found", aws.ToString(in.PolicyArn))
	}
	if len(p.versions) >= 5 {
		return nil, &types.LimitExceededException{Message: aws.String("policy version limit exceeded")}
	}
	id := p.addVersion(aws.ToString(in.PolicyDocument), f.now())
	return &iam.CreatePolicyVersionOutput{PolicyVersion: &types.PolicyVersion{VersionId: aws.String(id), IsDefaultVersion: true}}, nil
}

func (f *FakeIAM) DeletePolicyVersion(_ context.Context, in *iam.DeletePolicyVersionInput, _ ...func(*iam.Options)) (*iam.DeletePolicyVersionOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("DeletePolicyVersion"); err != nil {
		return nil, err
	}
	p, ok := f.policies[aws.ToString(in.PolicyArn)]
	if !ok {
		return nil, noSuchEntity("policy %s not found", aws.ToString(in.PolicyArn))
	}
	for i, v := range p.versions {
		if aws.ToString(v.VersionId) != aws.ToString(in.VersionId) {
			continue
		}
		if v.IsDefaultVersion {
			return nil, &types.DeleteConflictException{Message: aws.String("cannot delete the default version")}
		}
		p.versions = append(p.versions[:i], p.versions[i+1:]...)
		return &iam.DeletePolicyVersionOutput{}, nil
	}
	return nil, noSuchEntity("version %s not found", aws.ToString(in.VersionId))
}

func (f *FakeIAM) DeletePolicy(_ context.Context, in *iam.DeletePolicyInput, _ ...func(*iam.Options)) (*iam.DeletePolicyOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("DeletePolicy"); err != nil {
		return nil, err
	}
	policyARN := aws.ToString(in.PolicyArn)
	p, ok := f.policies[policyARN]
	if !ok {
		return nil, noSuchEntity("policy %s not found", policyARN)
	}
	for _, attached := range f.attachments {
		if attached[policyARN] {
			return nil, &types.DeleteConflictException{Message: aws.String("policy is attached")}
		}
	}
	if len(p.versions) > 1 {
		return nil, &types.DeleteConflictException{Message: aws.String("policy has non-default versions")}
	}
	delete(f.policies, policyARN)
	return &iam.DeletePolicyOutput{}, nil
}

func (f *FakeIAM) AttachRolePolicy(_ context.Context, in *iam.AttachRolePolicyInput, _ ...func(*iam.Options)) (*iam.AttachRolePolicyOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("AttachRolePolicy"); err != nil {
		return nil, err
	}
	role, policyARN := aws.ToString(in.RoleName), aws.ToString(in.PolicyArn)
	if _, ok := f.roles[role]; !ok {
		return nil, noSuchEntity("role %s not found", role)
	}
	if _, ok := f.policies[policyARN]; !ok {
		return nil, noSuchEntity("policy %s not found", policyARN)
	}
	if f.attachments[role] == nil {
		f.attachments[role] = map[string]bool{}
	}
	f.attachments[role][policyARN] = true
	return &iam.AttachRolePolicyOutput{}, nil
}

func (f *FakeIAM) DetachRolePolicy(_ context.Context, in *iam.DetachRolePolicyInput, _ ...func(*iam.Options)) (*iam.DetachRolePolicyOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("DetachRolePolicy"); err != nil {
		return nil, err
	}
	role, policyARN := aws.ToString(in.RoleName), aws.ToString(in.PolicyArn)
	if !f.attachments[role][policyARN] {
		return nil, noSuchEntity("policy %s is not attached to role %s", policyARN, role)
	}
	delete(f.attachments[role], policyARN)
	return &iam.DetachRolePolicyOutput{}, nil
}

func (f *FakeIAM) ListAttachedRolePolicies(_ context.Context, in *iam.ListAttachedRolePoliciesInput, _ ...func(*iam.Options)) (*iam.ListAttachedRolePoliciesOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("ListAttachedRolePolicies"); err != nil {
		return nil, err
	}
	role := aws.ToString(in.RoleName)
	if _, ok := f.roles[role]; !ok {
		return nil, noSuchEntity("role %s not found", role)
	}
	arns := make([]string, 0, len(f.attachments[role]))
	for a := range f.attachments[role] {
		arns = append(arns, a)
	}
	sort.Strings(arns)

	out := &iam.ListAttachedRolePoliciesOutput{}
	for _, a := range arns {
		out.AttachedPolicies = append(out.AttachedPolicies, types.AttachedPolicy{PolicyArn: aws.String(a)})
	}
	return out, nil
}
