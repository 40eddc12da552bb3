package data

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"sdae_lib/utils"

	"github.com/petar/GoMNIST"
	"gonum.org/v1/gonum/mat"
)

const mnistBaseURL = "https://storage.googleapis.com/cvdf-datasets/mnist/"

var mnistFiles = []string{
	"train-images-idx3-ubyte.gz",
	"train-labels-idx1-ubyte.gz",
	"t10k-images-idx3-ubyte.gz",
	"t10k-labels-idx1-ubyte.gz",
}

// EnsureMNIST downloads the four gzipped IDX files into dir when missing.
func EnsureMNIST(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	for _, f := range mnistFiles {
		localPath := filepath.Join(dir, f)
		if _, err := os.Stat(localPath); err == nil {
			continue
		} else if !os.IsNotExist(err) {
			return err
		}
		utils.Logf("Downloading %s...", f)
		if err := download(localPath, mnistBaseURL+f); err != nil {
			return fmt.Errorf("failed to download %s: %w", f, err)
		}
	}
	return nil
}

func download(path, url string) error {
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: %s", url, resp.Status)
	}
	tmp := path + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// LoadMNIST reads the train and test sets from dir with pixels scaled to
// [0,1] and flattened to 784-wide rows.
func LoadMNIST(dir string) (train, test *Dataset, err error) {
	trainSet, testSet, err := GoMNIST.Load(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("load MNIST from %s: %w", dir, err)
	}
	return fromMNISTSet(trainSet), fromMNISTSet(testSet), nil
}

func fromMNISTSet(s *GoMNIST.Set) *Dataset {
	n := s.Count()
	dim := s.NRow * s.NCol
	x := mat.NewDense(n, dim, nil)
	labels := make([]int, n)
	for i := 0; i < n; i++ {
		img, lbl := s.Get(i)
		row := x.RawRowView(i)
		for j, px := range img {
			row[j] = float64(px) / 255.0
		}
		labels[i] = int(lbl)
	}
	return &Dataset{X: x, Labels: labels}
}
