package store

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

var awsSession *session.Session
var s3Session *s3.S3
var s3logger hasPrintf
var s3region string

func s3client() *s3.S3 {
	if awsSession == nil {
		var err error
		awsSession, err = session.NewSession()
		if err != nil {
			s3log("s3client: could not create session: %v", err)
			return nil
		}
	}

	if s3Session == nil {
		s3Session = s3.New(awsSession, aws.NewConfig().WithRegion(s3region))
	}

	return s3Session
}

func s3init(logger hasPrintf, region string) {
	if s3logger != nil {
		panic("s3 store reinitialization")
	}
	if logger == nil {
		panic("s3 store nil logger")
	}
	s3region = region
	s3logger = logger
	s3log("initialized: region=[%s]", region)
}

func s3log(format string, v ...interface{}) {
	if s3logger == nil {
		fmt.Printf("s3 store: "+format, v...)
		panic("s3 store uninitialized")
	}
	s3logger.Printf("s3 store: "+format, v...)
}

func s3path(path string) bool {
	return strings.HasPrefix(path, "arn:aws:s3:")
}

// "arn:aws:s3:::bucket/folder/file.xxx"
func s3parse(path string) (string, string) {
	s := strings.Split(path, ":")
	if len(s) < 6 {
		return "", ""
	}
	file := s[5]
	slash := strings.IndexByte(file, '/')
	if slash < 1 {
		return "", ""
	}
	bucket := file[:slash]
	key := file[slash+1:]
	return bucket, key
}

func s3fileExists(path string) bool {

	s3c := s3client()
	if s3c == nil {
		s3log("s3fileExists: missing s3 client")
		return false
	}

	bucket, key := s3parse(path)

	params := &s3.HeadObjectInput{
		Bucket: aws.String(bucket), // Required
		Key:    aws.String(key),    // Required
	}
	_, err := s3c.HeadObject(params)

	return err == nil
}

func s3fileput(path string, buf []byte) error {

	s3c := s3client()
	if s3c == nil {
		return fmt.Errorf("s3fileput: missing s3 client")
	}

	bucket, key := s3parse(path)

	params := &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(buf),
	}
	_, err := s3c.PutObject(params)
	if err != nil {
		return fmt.Errorf("s3fileput: [%s] upload: %v", path, err)
	}

	return nil
}

func s3fileRead(path string) ([]byte, error) {

	s3c := s3client()
	if s3c == nil {
		return nil, fmt.Errorf("s3fileRead: missing s3 client")
	}

	bucket, key := s3parse(path)

	params := &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}
	out, err := s3c.GetObject(params)
	if err != nil {
		return nil, fmt.Errorf("s3fileRead: [%s] download: %v", path, err)
	}
	defer out.Body.Close()

	return io.ReadAll(out.Body)
}

func s3fileInfo(path string) (time.Time, int64, error) {

	s3c := s3client()
	if s3c == nil {
		return time.Time{}, 0, fmt.Errorf("s3fileInfo: missing s3 client")
	}

	bucket, key := s3parse(path)

	params := &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}
	out, err := s3c.HeadObject(params)
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("s3fileInfo: [%s] head: %v", path, err)
	}

	return aws.TimeValue(out.LastModified), aws.Int64Value(out.ContentLength), nil
}

func s3fileRemove(path string) error {

	s3c := s3client()
	if s3c == nil {
		return fmt.Errorf("s3fileRemove: missing s3 client")
	}

	bucket, key := s3parse(path)

	params := &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}
	_, err := s3c.DeleteObject(params)
	if err != nil {
		return fmt.Errorf("s3fileRemove: [%s] delete: %v", path, err)
	}

	return nil
}

// S3 has no rename: copy then delete the source object.
func s3fileRename(p1, p2 string) error {

	s3c := s3client()
	if s3c == nil {
		return fmt.Errorf("s3fileRename: missing s3 client")
	}

	bucket1, key1 := s3parse(p1)
	bucket2, key2 := s3parse(p2)

	params := &s3.CopyObjectInput{
		Bucket:     aws.String(bucket2),
		Key:        aws.String(key2),
		CopySource: aws.String(bucket1 + "/" + key1),
	}
	if _, copyErr := s3c.CopyObject(params); copyErr != nil {
		return fmt.Errorf("s3fileRename: copy [%s] to [%s]: %v", p1, p2, copyErr)
	}

	return s3fileRemove(p1)
}

func s3fileCompare(p1, p2 string) (bool, error) {

	b1, err1 := FileRead(p1)
	if err1 != nil {
		return false, fmt.Errorf("s3fileCompare: [%s]: %v", p1, err1)
	}

	b2, err2 := FileRead(p2)
	if err2 != nil {
		return false, fmt.Errorf("s3fileCompare: [%s]: %v", p2, err2)
	}

	return bytes.Equal(b1, b2), nil
}

func s3dirList(path string) (string, []string, error) {

	s3c := s3client()
	if s3c == nil {
		return "", nil, fmt.Errorf("s3dirList: missing s3 client")
	}

	bucket, key := s3parse(path)

	dirname := path
	folder := ""
	if slash := strings.LastIndexByte(key, '/'); slash >= 0 {
		folder = key[:slash+1]
		dirname = path[:len(path)-(len(key)-slash)]
	} else {
		dirname = path[:len(path)-len(key)-1]
	}

	var names []string

	params := &s3.ListObjectsInput{
		Bucket: aws.String(bucket),
		Prefix: aws.String(folder),
	}
	err := s3c.ListObjectsPages(params, func(page *s3.ListObjectsOutput, lastPage bool) bool {
		for _, obj := range page.Contents {
			full := aws.StringValue(obj.Key)
			name := full
			if slash := strings.LastIndexByte(full, '/'); slash >= 0 {
				name = full[slash+1:]
			}
			if name != "" {
				names = append(names, name)
			}
		}
		return true
	})
	if err != nil {
		return dirname, nil, fmt.Errorf("s3dirList: [%s] list: %v", path, err)
	}

	return dirname, names, nil
}
