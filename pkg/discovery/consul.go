package discovery

import (
	"fmt"
	"strconv"

	"github.com/hashicorp/consul/api"
)

// ServiceRegistry registers this instance with Consul and resolves peers.
type ServiceRegistry struct {
	client      *api.Client
	serviceName string
	serviceID   string
	serviceHost string
	servicePort int
	tags        []string
}

func NewServiceRegistry(consulAddress, serviceName, serviceID, serviceHost, servicePort string) (*ServiceRegistry, error) {
	port, err := strconv.Atoi(servicePort)
	if err != nil {
		return nil, fmt.Errorf("invalid port: %s: %w", servicePort, err)
	}

	config := api.DefaultConfig()
	config.Address = consulAddress
	client, err := api.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Consul client: %w", err)
	}

	if serviceHost == "" || serviceHost == "0.0.0.0" {
		serviceHost = serviceName
	}
	return &ServiceRegistry{
		client:      client,
		serviceName: serviceName,
		serviceID:   serviceID,
		serviceHost: serviceHost,
		servicePort: port,
		tags:        []string{"document", "asset", "storage"},
	}, nil
}

// Registration is the payload sent to the agent; /health is polled every 10s.
func (sr *ServiceRegistry) Registration() *api.AgentServiceRegistration {
	return &api.AgentServiceRegistration{
		ID:   sr.serviceID,
		Name: sr.serviceName,
		Port: sr.servicePort,
		Tags: sr.tags,
		Check: &api.AgentServiceCheck{
			HTTP:                           fmt.Sprintf("http://%s:%d/health", sr.serviceHost, sr.servicePort),
			Interval:                       "10s",
			Timeout:                        "5s",
			DeregisterCriticalServiceAfter: "1m",
		},
	}
}

func (sr *ServiceRegistry) Register() error {
	if err := sr.client.Agent().ServiceRegister(sr.Registration()); err != nil {
		return fmt.Errorf("failed to register service: %w", err)
	}
	return nil
}

func (sr *ServiceRegistry) Deregister() error {
	if err := sr.client.Agent().ServiceDeregister(sr.serviceID); err != nil {
		return fmt.Errorf("failed to deregister service: %w", err)
	}
	return nil
}
