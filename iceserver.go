package webrtc

import (
	"github.com/pion/ice/v4"
	"github.com/rtccore/webrtc/pkg/rtcerr"
)

// ICEServer describes a single STUN and TURN server that can be used by
// the ICE agent to establish a connection with a peer.
type ICEServer struct {
	URLs           []string
	Username       string
	Credential     interface{}
	CredentialType ICECredentialType
}

// OAuthCredential represents OAuth credential information used by the
// STUN/TURN client, per https://tools.ietf.org/html/rfc7635.
type OAuthCredential struct {
	MACKey      string
	AccessToken string
}

func (s ICEServer) parseURL(i int) (*ice.URL, error) {
	return ice.ParseURL(s.URLs[i])
}

func (s ICEServer) validate() ([]*ice.URL, error) {
	return s.urls()
}

func (s ICEServer) urls() ([]*ice.URL, error) {
	var urls []*ice.URL

	for i := range s.URLs {
		url, err := s.parseURL(i)
		if err != nil {
			return nil, err
		}

		if url.Scheme == ice.SchemeTypeTURN || url.Scheme == ice.SchemeTypeTURNS {
			if s.Username == "" || s.Credential == nil {
				return nil, &rtcerr.ConfigurationError{Err: ErrNoTurnCred}
			}
			url.Username = s.Username

			switch s.CredentialType {
			case ICECredentialTypePassword:
				password, ok := s.Credential.(string)
				if !ok {
					return nil, &rtcerr.ConfigurationError{Err: ErrTurnCred}
				}
				url.Password = password

			case ICECredentialTypeOauth:
				if _, ok := s.Credential.(OAuthCredential); !ok {
					return nil, &rtcerr.ConfigurationError{Err: ErrTurnCred}
				}

			default:
				return nil, &rtcerr.ConfigurationError{Err: ErrTurnCred}
			}
		}

		urls = append(urls, url)
	}

	return urls, nil
}
