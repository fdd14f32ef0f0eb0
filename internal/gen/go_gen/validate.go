package go_gen

import (
	"fmt"

	"github.com/kbirk/protonats/internal/parse"
	"github.com/kbirk/protonats/pkg/rpc"
)

// boundMethods returns the methods of svc that get bindings, in declaration
// order, after applying the notification policy and rejecting subject
// collisions.
func boundMethods(svc *parse.ServiceDefinition, opts Options) ([]*parse.ServiceMethodDefinition, error) {

	suffixes := make(map[string]string)
	for _, method := range svc.Methods {
		suffix := method.SubjectSuffix()
		if existing, ok := suffixes[suffix]; ok {
			return nil, fmt.Errorf("service %s: methods %s and %s both map to subject suffix %q", svc.Name, existing, method.Name, suffix)
		}
		suffixes[suffix] = method.Name
	}

	policy := opts.Notifications
	if policy == "" {
		policy = NotificationsGenerate
	}

	logger := opts.logger()

	var bound []*parse.ServiceMethodDefinition
	for _, method := range svc.Methods {
		if method.ClientStreaming {
			if policy == NotificationsReject {
				return nil, fmt.Errorf("service %s: method %s uses client streaming, which is not supported", svc.Name, method.Name)
			}
			logger.Warn("skipping client streaming method", "service", svc.Name, "method", method.Name)
			continue
		}

		if method.Kind() == rpc.KindNotification {
			switch policy {
			case NotificationsReject:
				return nil, fmt.Errorf("service %s: method %s is a notification and notifications are rejected", svc.Name, method.Name)
			case NotificationsSkip:
				logger.Warn("skipping notification method", "service", svc.Name, "method", method.Name)
				continue
			}
		}

		bound = append(bound, method)
	}

	return bound, nil
}
