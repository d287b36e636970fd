package token

import (
	"fmt"
	"sync"

	"github.com/upb/channel-token-service/secrets"
)

type rtcCall struct {
	Creds           secrets.CredentialPair
	Channel         string
	UID             string
	Role            Role
	TokenExpiry     int64
	PrivilegeExpiry int64
}

type rtmCall struct {
	Creds       secrets.CredentialPair
	UID         string
	TokenExpiry int64
}

// fakeSigner records calls and returns tokens derived from the inputs
type fakeSigner struct {
	mu       sync.Mutex
	rtcCalls []rtcCall
	rtmCalls []rtmCall

	rtcErr   error
	rtmErr   error
	rtcPanic interface{}
	rtcEmpty bool
}

func (f *fakeSigner) SignRTC(creds secrets.CredentialPair, channel, uid string, role Role, tokenExpiry, privilegeExpiry int64) (string, error) {
	f.mu.Lock()
	f.rtcCalls = append(f.rtcCalls, rtcCall{creds, channel, uid, role, tokenExpiry, privilegeExpiry})
	f.mu.Unlock()

	if f.rtcPanic != nil {
		panic(f.rtcPanic)
	}
	if f.rtcErr != nil {
		return "", f.rtcErr
	}
	if f.rtcEmpty {
		return "", nil
	}
	return fmt.Sprintf("rtc:%s:%s:%s:%s:%d", creds.AppID, channel, uid, role, tokenExpiry), nil
}

func (f *fakeSigner) SignRTM(creds secrets.CredentialPair, uid string, tokenExpiry int64) (string, error) {
	f.mu.Lock()
	f.rtmCalls = append(f.rtmCalls, rtmCall{creds, uid, tokenExpiry})
	f.mu.Unlock()

	if f.rtmErr != nil {
		return "", f.rtmErr
	}
	return fmt.Sprintf("rtm:%s:%s:%d", creds.AppID, uid, tokenExpiry), nil
}

func (f *fakeSigner) calls() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rtcCalls), len(f.rtmCalls)
}
